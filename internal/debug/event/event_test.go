package event

import "testing"

func TestParseKindRoundTrip(t *testing.T) {
	for k := range kindNames {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
}

func TestParseKindUnknown(t *testing.T) {
	if got := ParseKind("monitorWait"); got != Unknown {
		t.Errorf("ParseKind(monitorWait) = %v, want Unknown", got)
	}
	if Kind(999).String() != "unknown" {
		t.Errorf("out of range kind should print unknown")
	}
}

func TestKindIsLifecycle(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{VMStart, true},
		{VMDeath, true},
		{VMDisconnect, true},
		{Breakpoint, false},
		{ThreadDeath, false},
		{Unknown, false},
	}
	for _, tt := range tests {
		if got := tt.kind.IsLifecycle(); got != tt.want {
			t.Errorf("%v.IsLifecycle() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestParseSuspendPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want SuspendPolicy
	}{
		{"none", SuspendNone},
		{"thread", SuspendThread},
		{"all", SuspendAll},
		{"", SuspendAll},
	}
	for _, tt := range tests {
		if got := ParseSuspendPolicy(tt.in); got != tt.want {
			t.Errorf("ParseSuspendPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRequestIdentity(t *testing.T) {
	a := NewRequest(1, Breakpoint, SuspendAll)
	b := NewRequest(1, Breakpoint, SuspendAll)

	if a == b {
		t.Fatal("distinct requests must not be identical")
	}
	if a.ID() == b.ID() {
		t.Error("request IDs should be unique")
	}
	if a.String() != "breakpoint#1" {
		t.Errorf("String() = %q", a.String())
	}

	var none *Request
	if none.String() != "<none>" {
		t.Errorf("nil request String() = %q", none.String())
	}
}

func TestLocationString(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{}, "<unknown>"},
		{Location{Class: "Foo", Line: 3}, "Foo:3"},
		{Location{Class: "Foo", Method: "bar", Line: 3}, "Foo.bar:3"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestGroupLen(t *testing.T) {
	var g *Group
	if g.Len() != 0 {
		t.Error("nil group should have length 0")
	}
	g = &Group{Events: make([]Event, 3)}
	if g.Len() != 3 {
		t.Errorf("Len() = %d", g.Len())
	}
}
