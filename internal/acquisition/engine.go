package acquisition

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/perceptml/rsvp/go-controller/internal/scoring"
)

// #endregion

// #region codec

// jsonCodec lets the client call the Python acquisition engine without
// committing generated stubs; the engine registers the same codec name.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

// #endregion

// #region wire-types

type empty struct{}

type markFlashRequest struct {
	FlashIndex int `json:"flash_index"`
}

type wireSample struct {
	FlashIndex int     `json:"flash_index"`
	Value      float64 `json:"value"`
	RankPos    float64 `json:"rank_pos"`
}

type blockSamplesResponse struct {
	Samples []wireSample `json:"samples"`
}

// #endregion

// #region invoker

// Invoker abstracts the gRPC connection so tests can inject a fake
// transport. *grpc.ClientConn satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion

// #region engine-client

const markFlashTimeout = 100 * time.Millisecond

// EngineClient is a SignalSource backed by the remote acquisition engine.
type EngineClient struct {
	conn *grpc.ClientConn
	inv  Invoker
}

// NewEngineClient connects to the acquisition engine gRPC server.
func NewEngineClient(addr string) (*EngineClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &EngineClient{conn: conn, inv: conn}, nil
}

// NewEngineClientWithInvoker creates an EngineClient over an injected
// transport. Used for testing without a real gRPC connection.
func NewEngineClientWithInvoker(inv Invoker) *EngineClient {
	return &EngineClient{inv: inv}
}

// Close shuts down the gRPC connection.
func (c *EngineClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion

// #region block-lifecycle

// BeginBlock tells the engine to start attributing samples to a new block.
func (c *EngineClient) BeginBlock(ctx context.Context) error {
	if err := c.inv.Invoke(ctx, "/rsvp.Acquisition/BeginBlock", &empty{}, &empty{}, grpc.ForceCodec(jsonCodec{})); err != nil {
		return fmt.Errorf("begin block rpc: %w", err)
	}
	return nil
}

// EndBlock closes the current collection block.
func (c *EngineClient) EndBlock(ctx context.Context) error {
	if err := c.inv.Invoke(ctx, "/rsvp.Acquisition/EndBlock", &empty{}, &empty{}, grpc.ForceCodec(jsonCodec{})); err != nil {
		return fmt.Errorf("end block rpc: %w", err)
	}
	return nil
}

// #endregion

// #region mark-flash

// MarkFlash notifies the engine that an unlabeled flash has begun. Best
// effort: the flash timer cannot stall on the network, so failures are
// logged and dropped.
func (c *EngineClient) MarkFlash(flashIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), markFlashTimeout)
	defer cancel()
	req := &markFlashRequest{FlashIndex: flashIndex}
	if err := c.inv.Invoke(ctx, "/rsvp.Acquisition/MarkFlash", req, &empty{}, grpc.ForceCodec(jsonCodec{})); err != nil {
		log.Printf("[ACQ] mark flash %d failed: %v", flashIndex, err)
	}
}

// #endregion

// #region block-samples

// BlockSamples fetches the samples collected in the block just ended.
func (c *EngineClient) BlockSamples(ctx context.Context) ([]scoring.FlashSample, error) {
	var resp blockSamplesResponse
	if err := c.inv.Invoke(ctx, "/rsvp.Acquisition/BlockSamples", &empty{}, &resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, fmt.Errorf("block samples rpc: %w", err)
	}
	samples := make([]scoring.FlashSample, len(resp.Samples))
	for i, s := range resp.Samples {
		samples[i] = scoring.FlashSample{
			FlashIndex: s.FlashIndex,
			Value:      s.Value,
			RankPos:    s.RankPos,
		}
	}
	return samples, nil
}

// #endregion
