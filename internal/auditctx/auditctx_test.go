package auditctx

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", IPAddress: "10.0.0.1"})

	actor, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if actor.UserID != "u1" || actor.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestFromContextWithoutActor(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no actor")
	}
	//nolint:staticcheck // nil context is tolerated
	if _, ok := FromContext(nil); ok {
		t.Fatal("expected no actor for nil context")
	}
}
