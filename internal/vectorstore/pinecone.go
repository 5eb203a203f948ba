package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hyperjump/insurepal/internal/apperr"
	"github.com/hyperjump/insurepal/internal/config"
)

// controlPlane is the index management subset of *pinecone.Client.
type controlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
}

// indexConn is the data plane subset of *pinecone.IndexConnection.
type indexConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeStore keeps vectors in a Pinecone serverless index. Index management
// goes through the control plane; upserts and queries use one connection per
// namespace to the index host.
type PineconeStore struct {
	name          string
	dimension     int
	metric        string
	cloud         string
	region        string
	apiKey        string
	controllerURL string
	pollInterval  time.Duration
	logger        *zap.Logger

	// newControl and dial are replaced in tests.
	newControl func() (controlPlane, error)
	dial       func(host, namespace string) (indexConn, error)

	mu      sync.Mutex
	control controlPlane
	sdk     *pinecone.Client
	host    string
	conns   map[string]indexConn
}

// PineconeOption configures a PineconeStore.
type PineconeOption func(*PineconeStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PineconeOption {
	return func(p *PineconeStore) { p.logger = l }
}

// WithPollInterval sets how often EnsureIndex checks a new index for readiness.
func WithPollInterval(d time.Duration) PineconeOption {
	return func(p *PineconeStore) { p.pollInterval = d }
}

// NewPineconeStore returns a store for cfg.IndexName. Nothing is contacted and
// the API key is not checked until first use. A legacy environment such as
// "us-east-1-aws" overrides the configured cloud and region.
func NewPineconeStore(cfg config.VectorStoreConfig, opts ...PineconeOption) *PineconeStore {
	p := &PineconeStore{
		name:          cfg.IndexName,
		dimension:     cfg.Dimension,
		metric:        cfg.Metric,
		cloud:         cfg.Cloud,
		region:        cfg.Region,
		apiKey:        cfg.APIKey,
		controllerURL: strings.TrimRight(cfg.ControllerURL, "/"),
		pollInterval:  time.Second,
		logger:        zap.NewNop(),
		conns:         make(map[string]indexConn),
	}
	if cloud, region, ok := ParseEnvironment(cfg.Environment); ok {
		p.cloud, p.region = cloud, region
	}
	p.newControl = p.sdkControl
	p.dial = p.sdkDial
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseEnvironment splits a legacy Pinecone environment of the form
// "<region>-<cloud>" (for example "us-east-1-aws").
func ParseEnvironment(env string) (cloud, region string, ok bool) {
	i := strings.LastIndex(env, "-")
	if i <= 0 {
		return "", "", false
	}
	switch c := env[i+1:]; c {
	case "aws", "gcp", "azure":
		return c, env[:i], true
	}
	return "", "", false
}

// Type returns the store type identifier.
func (p *PineconeStore) Type() string {
	return TypePinecone
}

// sdkControl builds the SDK client. Callers hold p.mu.
func (p *PineconeStore) sdkControl() (controlPlane, error) {
	if p.sdk == nil {
		c, err := pinecone.NewClient(pinecone.NewClientParams{
			ApiKey: p.apiKey,
			Host:   p.controllerURL,
		})
		if err != nil {
			return nil, err
		}
		p.sdk = c
	}
	return p.sdk, nil
}

func (p *PineconeStore) sdkDial(host, namespace string) (indexConn, error) {
	p.mu.Lock()
	sdk := p.sdk
	p.mu.Unlock()
	if sdk == nil {
		return nil, errors.New("pinecone client not initialized")
	}
	return sdk.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
}

// EnsureIndex lists the project's indexes and creates the configured one only
// if it is absent. Calls are serialized; once the index host is known later
// calls return immediately. A 409 on create means another process won the race
// and counts as success.
func (p *PineconeStore) EnsureIndex(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host != "" {
		return nil
	}
	if p.control == nil {
		c, err := p.newControl()
		if err != nil {
			return apperr.Remote("pinecone client", err)
		}
		p.control = c
	}

	indexes, err := p.control.ListIndexes(ctx)
	if err != nil {
		return apperr.Remote("pinecone list indexes", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == p.name {
			p.logger.Debug("pinecone index exists", zap.String("index", p.name), zap.String("host", idx.Host))
			return p.awaitReady(ctx, idx)
		}
	}

	created, err := p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.name,
		Dimension: int32(p.dimension),
		Metric:    pinecone.IndexMetric(p.metric),
		Cloud:     pinecone.Cloud(p.cloud),
		Region:    p.region,
	})
	switch {
	case err == nil:
		p.logger.Info("created pinecone index",
			zap.String("index", p.name),
			zap.Int("dimension", p.dimension),
			zap.String("metric", p.metric),
			zap.String("cloud", p.cloud),
			zap.String("region", p.region))
	case isConflict(err):
		p.logger.Debug("pinecone index created concurrently", zap.String("index", p.name))
		created = nil
	default:
		return apperr.Remote("pinecone create index", err)
	}
	return p.awaitReady(ctx, created)
}

func isConflict(err error) bool {
	var pe *pinecone.PineconeError
	if errors.As(err, &pe) && pe.Code == http.StatusConflict {
		return true
	}
	return strings.Contains(err.Error(), "ALREADY_EXISTS")
}

func indexReady(idx *pinecone.Index) bool {
	return idx != nil && idx.Host != "" && idx.Status != nil && idx.Status.Ready
}

// awaitReady polls the index description until it reports ready with a host,
// then records the host. Callers hold p.mu.
func (p *PineconeStore) awaitReady(ctx context.Context, idx *pinecone.Index) error {
	for first := idx == nil; !indexReady(idx); first = false {
		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
		}
		desc, err := p.control.DescribeIndex(ctx, p.name)
		if err != nil {
			return apperr.Remote("pinecone describe index", err)
		}
		idx = desc
	}
	p.host = idx.Host
	return nil
}

// conn returns the cached data plane connection for namespace, resolving the
// index host first if needed.
func (p *PineconeStore) conn(ctx context.Context, namespace string) (indexConn, error) {
	p.mu.Lock()
	host := p.host
	c := p.conns[namespace]
	p.mu.Unlock()
	if c != nil {
		return c, nil
	}
	if host == "" {
		if err := p.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		p.mu.Lock()
		host = p.host
		p.mu.Unlock()
	}

	c, err := p.dial(host, namespace)
	if err != nil {
		return nil, apperr.Remote("pinecone connect", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing := p.conns[namespace]; existing != nil {
		_ = c.Close()
		return existing, nil
	}
	p.conns[namespace] = c
	return c, nil
}

// Upsert writes records to namespace in batches of 100.
func (p *PineconeStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	c, err := p.conn(ctx, namespace)
	if err != nil {
		return err
	}
	for _, batch := range Batches(records, upsertBatchSize) {
		vectors, err := toVectors(batch)
		if err != nil {
			return err
		}
		n, err := c.UpsertVectors(ctx, vectors)
		if err != nil {
			return apperr.Remote("pinecone upsert", err)
		}
		p.logger.Debug("pinecone upsert",
			zap.String("namespace", namespace),
			zap.Int("sent", len(batch)),
			zap.Uint32("upserted", n))
	}
	return nil
}

func toVectors(records []Record) ([]*pinecone.Vector, error) {
	out := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		v := &pinecone.Vector{Id: r.ID, Values: r.Values}
		if len(r.Metadata) > 0 {
			meta, err := structpb.NewStruct(r.Metadata)
			if err != nil {
				return nil, fmt.Errorf("metadata for %s: %w", r.ID, err)
			}
			v.Metadata = meta
		}
		out[i] = v
	}
	return out, nil
}

// Query returns the topK nearest records in namespace with their metadata.
func (p *PineconeStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	c, err := p.conn(ctx, namespace)
	if err != nil {
		return nil, err
	}
	resp, err := c.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, apperr.Remote("pinecone query", err)
	}
	return fromScored(resp.Matches), nil
}

func fromScored(scored []*pinecone.ScoredVector) []*Match {
	out := make([]*Match, 0, len(scored))
	for _, s := range scored {
		if s == nil || s.Vector == nil {
			continue
		}
		m := &Match{ID: s.Vector.Id, Score: float64(s.Score)}
		if s.Vector.Metadata != nil {
			m.Metadata = s.Vector.Metadata.AsMap()
		}
		out = append(out, m)
	}
	return out
}

// Stats returns the index description statistics.
func (p *PineconeStore) Stats(ctx context.Context) (*Stats, error) {
	c, err := p.conn(ctx, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.DescribeIndexStats(ctx)
	if err != nil {
		return nil, apperr.Remote("pinecone stats", err)
	}
	s := &Stats{
		IndexName:    p.name,
		Dimension:    int(resp.Dimension),
		TotalVectors: int64(resp.TotalVectorCount),
		Namespaces:   make(map[string]int64, len(resp.Namespaces)),
	}
	for ns, summary := range resp.Namespaces {
		if summary != nil {
			s.Namespaces[ns] = int64(summary.VectorCount)
		}
	}
	return s, nil
}

// Close closes every data plane connection.
func (p *PineconeStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for ns, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.conns, ns)
	}
	return errors.Join(errs...)
}
