package cron

import "testing"

func TestRegistryPreservesOrderAndSkipsNil(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	registry := NewRegistry(first, nil, second)
	registry.Register(nil)
	registry.Register(&testJob{name: "third"})

	jobs := registry.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, name := range []string{"first", "second", "third"} {
		if jobs[i].Name() != name {
			t.Fatalf("job %d: expected %s, got %s", i, name, jobs[i].Name())
		}
	}
}

func TestRegistryNames(t *testing.T) {
	registry := NewRegistry(&testJob{name: "sweep"}, &testJob{name: "purge"})

	names := registry.Names()
	if len(names) != 2 || names[0] != "sweep" || names[1] != "purge" {
		t.Fatalf("names = %v", names)
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&testJob{name: "only"})
	jobs := registry.Jobs()
	jobs[0] = &testJob{name: "swapped"}
	if registry.Jobs()[0].Name() != "only" {
		t.Fatalf("mutating the returned slice leaked into the registry")
	}
}
