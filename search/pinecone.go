package search

import (
	"context"
	"fmt"
	"time"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// IndexSpec describes the serverless index to create when it is missing.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string

	PollInterval time.Duration
	ReadyTimeout time.Duration
}

// pineconeControl is the part of *pinecone.Client used to manage indexes.
type pineconeControl interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
}

// pineconeData is the part of *pinecone.IndexConnection used for vectors.
type pineconeData interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// Pinecone is an Index backed by a Pinecone serverless index.
type Pinecone struct {
	spec    IndexSpec
	control pineconeControl
	connect func(host string) (pineconeData, error)

	conn pineconeData
}

func NewPinecone(apiKey string, spec IndexSpec) (*Pinecone, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	return &Pinecone{
		spec:    spec,
		control: client,
		connect: func(host string) (pineconeData, error) {
			return client.Index(pinecone.NewIndexConnParams{Host: host})
		},
	}, nil
}

func (p *Pinecone) Ensure(ctx context.Context) error {
	indexes, err := p.control.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	exists := false
	for _, idx := range indexes {
		if idx != nil && idx.Name == p.spec.Name {
			exists = true
			break
		}
	}

	if !exists {
		metric := pinecone.IndexMetric(p.spec.Metric)
		_, err := p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      p.spec.Name,
			Dimension: int32(p.spec.Dimension),
			Metric:    metric,
			Cloud:     pinecone.Cloud(p.spec.Cloud),
			Region:    p.spec.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", p.spec.Name, err)
		}
	}

	host, err := p.waitReady(ctx)
	if err != nil {
		return err
	}

	return p.open(host)
}

// waitReady polls the index description until it reports ready and returns
// the data plane host.
func (p *Pinecone) waitReady(ctx context.Context) (string, error) {
	interval := p.spec.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	if p.spec.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.spec.ReadyTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		desc, err := p.control.DescribeIndex(ctx, p.spec.Name)
		if err != nil && ctx.Err() == nil {
			return "", fmt.Errorf("failed to describe index %s: %w", p.spec.Name, err)
		}
		if err == nil && desc.Status != nil && desc.Status.Ready {
			return desc.Host, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s after %s: %w", ErrIndexNotReady, p.spec.Name, p.spec.ReadyTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Pinecone) open(host string) error {
	if p.conn != nil {
		return nil
	}
	conn, err := p.connect(host)
	if err != nil {
		return fmt.Errorf("failed to connect to index host %s: %w", host, err)
	}
	p.conn = conn
	return nil
}

func (p *Pinecone) Upsert(ctx context.Context, vectors []Vector) error {
	if p.conn == nil {
		return fmt.Errorf("%w: %s has no open connection", ErrIndexNotReady, p.spec.Name)
	}

	batch := make([]*pinecone.Vector, len(vectors))
	for i, v := range vectors {
		metadata, err := structpb.NewStruct(map[string]any{
			"quote":      v.Metadata.Quote,
			"author":     v.Metadata.Author,
			"book_title": v.Metadata.BookTitle,
		})
		if err != nil {
			return fmt.Errorf("failed to build metadata for vector %s: %w", v.ID, err)
		}
		batch[i] = &pinecone.Vector{
			Id:       v.ID,
			Values:   v.Values,
			Metadata: metadata,
		}
	}

	count, err := p.conn.UpsertVectors(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to upsert %d vectors: %w", len(batch), err)
	}
	if int(count) != len(batch) {
		return fmt.Errorf("upserted %d of %d vectors", count, len(batch))
	}
	return nil
}

func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if p.conn == nil {
		return nil, fmt.Errorf("%w: %s has no open connection", ErrIndexNotReady, p.spec.Name)
	}

	res, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector query: %w", err)
	}

	matches := make([]Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: m.Score}
		if md := m.Vector.Metadata; md != nil {
			fields := md.AsMap()
			match.Metadata = Metadata{
				Quote:     stringField(fields, "quote"),
				Author:    stringField(fields, "author"),
				BookTitle: stringField(fields, "book_title"),
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close releases the data plane connection.
func (p *Pinecone) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
