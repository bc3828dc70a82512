package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHookChainOrderAndErrors(t *testing.T) {
	var order []string
	mk := func(name string, fail bool) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				if fail {
					return ctx, km, data, errors.New("rejected")
				}
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
			Err: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "err:"+name)
			},
		}
	}

	chain := NewHookChain(mk("a", false), nil, mk("b", false))
	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	if err != nil || string(data) != ">ab" {
		t.Fatalf("unexpected %q %v", data, err)
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v", order)
		}
	}

	order = nil
	failing := NewHookChain(mk("a", true), mk("b", false))
	if _, _, _, err := failing.BeforeHandle(context.Background(), "t", kafka.Message{}, nil); err == nil {
		t.Fatalf("expected error")
	}
	if len(order) != 3 || order[1] != "err:a" || order[2] != "err:b" {
		t.Fatalf("expected all hooks notified, got %v", order)
	}
}

func TestHookChainRecoversPanic(t *testing.T) {
	panicky := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}}
	_, _, _, err := NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected panic hook error, got %v", err)
	}
}

func TestTraceHookCopiesHeader(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", msg, nil)
	if err != nil || TraceID(ctx) != "abc" {
		t.Fatalf("trace id not propagated: %q %v", TraceID(ctx), err)
	}
	if h := traceHeaders(ctx); len(h) != 1 || string(h[0].Value) != "abc" {
		t.Fatalf("producer headers = %v", h)
	}
}

func TestTraceHookStampsStartTime(t *testing.T) {
	ctx, _, _, _ := TraceHook().BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if _, ok := StartTime(ctx); !ok {
		t.Fatalf("start time missing")
	}
	if TraceID(ctx) != "" {
		t.Fatalf("trace id set without header")
	}
}
