package provider

import "testing"

func TestSatisfiesNilRequirement(t *testing.T) {
	if !(Capabilities{}).Satisfies(nil) {
		t.Error("nil requirement must always be satisfied")
	}
}

func TestSatisfiesSubset(t *testing.T) {
	full := Capabilities{
		CreateAddress:  true,
		CustomUsername: true,
		ListMessages:   true,
		FetchMessage:   true,
		MessageHTML:    true,
	}

	if !full.Satisfies(&Capabilities{CreateAddress: true, ListMessages: true}) {
		t.Error("advertised capabilities must satisfy a subset requirement")
	}
	if full.Satisfies(&Capabilities{Attachments: true}) {
		t.Error("missing capability must fail the requirement")
	}
	if full.Satisfies(&Capabilities{CreateAddress: true, ExpirationControl: true}) {
		t.Error("one missing capability must fail even when others match")
	}
}
