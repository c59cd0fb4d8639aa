package provider

import (
	"context"
	"testing"
	"time"
)

// fakeProvider is a minimal adapter for routing tests.
type fakeProvider struct {
	name    string
	caps    Capabilities
	domains []string
	panics  bool
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Capabilities() Capabilities { return f.caps }
func (f *fakeProvider) Domains() []string          { return f.domains }

func (f *fakeProvider) CreateAddress(ctx context.Context, req CreateRequest) *Envelope {
	return OK(f.name, time.Now(), &CreatedAddress{Address: "x@" + f.name + ".test", Provider: f.name})
}

func (f *fakeProvider) ListMessages(ctx context.Context, q ListQuery) *Envelope {
	return OK(f.name, time.Now(), []Message{})
}

func (f *fakeProvider) FetchMessage(ctx context.Context, req FetchRequest) *Envelope {
	return OK(f.name, time.Now(), &Message{ID: req.MessageID, Provider: f.name})
}

func (f *fakeProvider) Health(ctx context.Context) HealthSnapshot {
	if f.panics {
		panic("broken adapter")
	}
	return HealthSnapshot{Provider: f.name, Status: StatusActive, LastChecked: time.Now()}
}

func (f *fakeProvider) Statistics() Statistics {
	return Statistics{Provider: f.name}
}

func (f *fakeProvider) TestConnectivity(ctx context.Context) (time.Duration, error) {
	return time.Millisecond, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(&fakeProvider{
		name:    "guerrilla",
		caps:    Capabilities{CreateAddress: true, ListMessages: true, FetchMessage: true, MessageHTML: true, Attachments: true},
		domains: []string{"sharklasers.com"},
	}, RouteConfig{Enabled: true, Priority: 2})
	r.Register(&fakeProvider{
		name:    "mailtm",
		caps:    Capabilities{CreateAddress: true, CustomUsername: true, ListMessages: true, FetchMessage: true, MessageHTML: true, Attachments: true},
		domains: []string{"indigobook.example"},
	}, RouteConfig{Enabled: true, Priority: 1})
	r.Register(&fakeProvider{
		name: "onesec",
		caps: Capabilities{CreateAddress: true, CustomUsername: true, CustomDomain: true, ListMessages: true, FetchMessage: true, MessageHTML: true},
	}, RouteConfig{Enabled: true, Priority: 3})
	return r
}

func TestEnabledOrderedByPriority(t *testing.T) {
	r := newTestRegistry()
	got := r.Enabled()
	want := []string{"mailtm", "guerrilla", "onesec"}
	if len(got) != len(want) {
		t.Fatalf("got %d providers, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.Name() != want[i] {
			t.Errorf("position %d = %s, want %s", i, p.Name(), want[i])
		}
	}
}

func TestEnabledExcludesDisabled(t *testing.T) {
	r := newTestRegistry()
	r.SetRouteConfig("mailtm", RouteConfig{Enabled: false, Priority: 1})
	for _, p := range r.Enabled() {
		if p.Name() == "mailtm" {
			t.Error("disabled provider returned from Enabled")
		}
	}
}

func TestRegisterLastWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "mailtm"}, RouteConfig{Enabled: true, Priority: 5})
	replacement := &fakeProvider{name: "mailtm", domains: []string{"new.example"}}
	r.Register(replacement, RouteConfig{Enabled: true, Priority: 1})

	if got := r.Provider("mailtm"); got != Provider(replacement) {
		t.Error("second registration did not replace the first")
	}
	if len(r.Names()) != 1 {
		t.Errorf("registry holds %d entries, want 1", len(r.Names()))
	}
}

func TestSelectBestFiltersByCapability(t *testing.T) {
	r := newTestRegistry()

	// Only onesec advertises custom domains.
	p := r.SelectBest(&Capabilities{CustomDomain: true})
	if p == nil || p.Name() != "onesec" {
		t.Fatalf("SelectBest(custom domain) = %v, want onesec", p)
	}

	// Nothing supports expiration control.
	if p := r.SelectBest(&Capabilities{ExpirationControl: true}); p != nil {
		t.Errorf("SelectBest(expiration) = %s, want nil", p.Name())
	}
}

func TestSelectBestPrefersPerformanceOrder(t *testing.T) {
	r := newTestRegistry()

	// All three can create addresses; mailtm ranks first.
	p := r.SelectBest(&Capabilities{CreateAddress: true})
	if p == nil || p.Name() != "mailtm" {
		t.Fatalf("SelectBest(create) = %v, want mailtm", p)
	}

	// Attachments narrows to mailtm and guerrilla; mailtm still wins.
	p = r.SelectBest(&Capabilities{Attachments: true})
	if p == nil || p.Name() != "mailtm" {
		t.Fatalf("SelectBest(attachments) = %v, want mailtm", p)
	}

	r.SetRouteConfig("mailtm", RouteConfig{Enabled: false})
	p = r.SelectBest(&Capabilities{Attachments: true})
	if p == nil || p.Name() != "guerrilla" {
		t.Fatalf("SelectBest(attachments, mailtm off) = %v, want guerrilla", p)
	}
}

func TestResolveByAddressAdapterDomains(t *testing.T) {
	r := newTestRegistry()
	p := r.ResolveByAddress("someone@indigobook.example")
	if p == nil || p.Name() != "mailtm" {
		t.Fatalf("resolve via adapter domains = %v, want mailtm", p)
	}
}

func TestResolveByAddressWellKnownTable(t *testing.T) {
	r := newTestRegistry()
	// onesec reports no domains of its own; the static table covers it.
	p := r.ResolveByAddress("Someone@1SECMAIL.COM")
	if p == nil || p.Name() != "onesec" {
		t.Fatalf("resolve via static table = %v, want onesec", p)
	}
}

func TestResolveByAddressUnknown(t *testing.T) {
	r := newTestRegistry()
	if p := r.ResolveByAddress("user@unknown-domain.example"); p != nil {
		t.Errorf("resolve unknown domain = %s, want nil", p.Name())
	}
	if p := r.ResolveByAddress("not-an-address"); p != nil {
		t.Errorf("resolve malformed address = %s, want nil", p.Name())
	}
}

func TestAllHealthSurvivesPanickingAdapter(t *testing.T) {
	r := newTestRegistry()
	r.Register(&fakeProvider{name: "broken", panics: true}, RouteConfig{Enabled: true, Priority: 9})

	health := r.AllHealth(context.Background())
	if len(health) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(health))
	}
	if health["broken"].Status != StatusError {
		t.Errorf("broken adapter status = %s, want error", health["broken"].Status)
	}
	if health["mailtm"].Status != StatusActive {
		t.Errorf("healthy adapter status = %s, want active", health["mailtm"].Status)
	}
}

func TestAllStatisticsIncludesEveryAdapter(t *testing.T) {
	r := newTestRegistry()
	r.SetRouteConfig("onesec", RouteConfig{Enabled: false})
	stats := r.AllStatistics()
	if len(stats) != 3 {
		t.Fatalf("got %d stats entries, want 3", len(stats))
	}
	if _, ok := stats["onesec"]; !ok {
		t.Error("disabled adapter missing from statistics")
	}
}
