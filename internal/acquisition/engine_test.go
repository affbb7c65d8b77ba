package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"google.golang.org/grpc"
)

// #region fake-invoker

type fakeInvoker struct {
	methods []string
	args    []any
	reply   map[string]any // method -> canned reply
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	f.methods = append(f.methods, method)
	f.args = append(f.args, args)
	if f.err != nil {
		return f.err
	}
	if canned, ok := f.reply[method]; ok {
		raw, err := json.Marshal(canned)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, reply)
	}
	return nil
}

// #endregion

func TestEngineClient_BlockLifecycle(t *testing.T) {
	inv := &fakeInvoker{}
	client := NewEngineClientWithInvoker(inv)

	if err := client.BeginBlock(context.Background()); err != nil {
		t.Fatal(err)
	}
	client.MarkFlash(3)
	if err := client.EndBlock(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"/rsvp.Acquisition/BeginBlock", "/rsvp.Acquisition/MarkFlash", "/rsvp.Acquisition/EndBlock"}
	if len(inv.methods) != len(want) {
		t.Fatalf("methods = %v, want %v", inv.methods, want)
	}
	for i := range want {
		if inv.methods[i] != want[i] {
			t.Errorf("method %d = %s, want %s", i, inv.methods[i], want[i])
		}
	}

	mark, ok := inv.args[1].(*markFlashRequest)
	if !ok || mark.FlashIndex != 3 {
		t.Errorf("mark flash args = %#v, want flash index 3", inv.args[1])
	}
}

func TestEngineClient_BlockSamples(t *testing.T) {
	inv := &fakeInvoker{
		reply: map[string]any{
			"/rsvp.Acquisition/BlockSamples": blockSamplesResponse{
				Samples: []wireSample{
					{FlashIndex: 1, Value: 2.5, RankPos: 2},
					{FlashIndex: 2, Value: 9.0, RankPos: 1},
				},
			},
		},
	}
	client := NewEngineClientWithInvoker(inv)

	samples, err := client.BlockSamples(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[1].FlashIndex != 2 || samples[1].Value != 9.0 || samples[1].RankPos != 1 {
		t.Errorf("sample[1] = %+v", samples[1])
	}
}

func TestEngineClient_RPCErrorsWrapped(t *testing.T) {
	base := errors.New("transport down")
	client := NewEngineClientWithInvoker(&fakeInvoker{err: base})

	if err := client.BeginBlock(context.Background()); !errors.Is(err, base) {
		t.Errorf("begin block err = %v, want wrapped transport error", err)
	}
	if _, err := client.BlockSamples(context.Background()); !errors.Is(err, base) {
		t.Errorf("block samples err = %v, want wrapped transport error", err)
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	c := jsonCodec{}
	if c.Name() != "json" {
		t.Errorf("codec name = %s, want json", c.Name())
	}
	data, err := c.Marshal(&markFlashRequest{FlashIndex: 7})
	if err != nil {
		t.Fatal(err)
	}
	var out markFlashRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.FlashIndex != 7 {
		t.Errorf("flash index = %d, want 7", out.FlashIndex)
	}
}
