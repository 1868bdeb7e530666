package dispatch

import (
	"errors"
	"testing"

	"github.com/inspectkit/bridge/internal/protocol"
)

func parse(t *testing.T, raw string) protocol.Message {
	t.Helper()
	msg, err := protocol.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return msg
}

func TestDispatchInvokesHandler(t *testing.T) {
	table := NewTable(nil)

	var got protocol.Message
	table.Register("setPreference", func(msg protocol.Message) (Result, error) {
		got = msg
		return Result{}, nil
	})

	msg := parse(t, `{"method":"setPreference","params":["a","b"]}`)
	if _, err := table.Dispatch(msg); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if got.Method != "setPreference" || len(got.Params) != 2 {
		t.Errorf("handler saw %+v", got)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	table := NewTable(nil)

	_, err := table.Dispatch(parse(t, `{"method":"unknownThing"}`))
	if !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	table := NewTable(nil)

	boom := errors.New("bad params")
	table.Register("broken", func(protocol.Message) (Result, error) {
		return Result{}, boom
	})

	_, err := table.Dispatch(parse(t, `{"method":"broken"}`))
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestDispatchPendingResult(t *testing.T) {
	table := NewTable(nil)

	table.Register("loadNetworkResource", func(protocol.Message) (Result, error) {
		return Result{Pending: true}, nil
	})

	res, err := table.Dispatch(parse(t, `{"id":1,"method":"loadNetworkResource"}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !res.Pending {
		t.Error("expected pending result")
	}
}

func TestRegisterReplaces(t *testing.T) {
	table := NewTable(nil)

	table.Register("m", func(protocol.Message) (Result, error) {
		return Result{Value: "old"}, nil
	})
	table.Register("m", func(protocol.Message) (Result, error) {
		return Result{Value: "new"}, nil
	})

	res, err := table.Dispatch(parse(t, `{"method":"m"}`))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if res.Value != "new" {
		t.Errorf("expected replacement handler, got %v", res.Value)
	}
}

func TestMethodsSorted(t *testing.T) {
	table := NewTable(nil)
	table.Register("zoomIn", nil)
	table.Register("loadCompleted", nil)
	table.Register("reattach", nil)

	methods := table.Methods()
	want := []string{"loadCompleted", "reattach", "zoomIn"}
	if len(methods) != len(want) {
		t.Fatalf("got %v", methods)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Errorf("methods[%d] = %q, want %q", i, methods[i], want[i])
		}
	}
}
