package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeControl struct {
	existing    []*pinecone.Index
	created     *pinecone.CreateServerlessIndexRequest
	notReadyFor int
	describes   int
}

func (f *fakeControl) ListIndexes(ctx context.Context) ([]*pinecone.Index, error) {
	return f.existing, nil
}

func (f *fakeControl) CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error) {
	f.created = in
	return &pinecone.Index{Name: in.Name}, nil
}

func (f *fakeControl) DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error) {
	f.describes++
	ready := f.notReadyFor >= 0 && f.describes > f.notReadyFor
	return &pinecone.Index{
		Name:   idxName,
		Host:   "codex.example.pinecone.io",
		Status: &pinecone.IndexStatus{Ready: ready},
	}, nil
}

type fakeData struct {
	upserted [][]*pinecone.Vector
	closed   bool
}

func (f *fakeData) UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error) {
	f.upserted = append(f.upserted, in)
	return uint32(len(in)), nil
}

func (f *fakeData) QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	metadata, _ := structpb.NewStruct(map[string]any{"quote": "Be the change.", "author": "Mahatma Gandhi", "book_title": ""})
	return &pinecone.QueryVectorsResponse{
		Matches: []*pinecone.ScoredVector{
			{Vector: &pinecone.Vector{Id: "7", Metadata: metadata}, Score: 0.9},
		},
	}, nil
}

func (f *fakeData) Close() error {
	f.closed = true
	return nil
}

func testSpec() IndexSpec {
	return IndexSpec{
		Name:         "codex",
		Dimension:    1536,
		Metric:       "dotproduct",
		Cloud:        "aws",
		Region:       "us-west-2",
		PollInterval: time.Millisecond,
		ReadyTimeout: time.Second,
	}
}

func newTestPinecone(control *fakeControl, data *fakeData, spec IndexSpec) (*Pinecone, *string) {
	var host string
	return &Pinecone{
		spec:    spec,
		control: control,
		connect: func(h string) (pineconeData, error) {
			host = h
			return data, nil
		},
	}, &host
}

func TestPinecone_EnsureCreatesAndWaits(t *testing.T) {
	control := &fakeControl{notReadyFor: 2}
	data := &fakeData{}
	p, host := newTestPinecone(control, data, testSpec())

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if control.created == nil {
		t.Fatal("expected the index to be created")
	}
	if control.created.Name != "codex" || control.created.Dimension != 1536 || control.created.Region != "us-west-2" {
		t.Errorf("unexpected create request %+v", control.created)
	}
	if control.created.Metric != pinecone.Dotproduct {
		t.Errorf("expected dotproduct metric, got %v", control.created.Metric)
	}
	if control.describes != 3 {
		t.Errorf("expected 3 describe calls, got %d", control.describes)
	}
	if *host != "codex.example.pinecone.io" {
		t.Errorf("unexpected host %q", *host)
	}
}

func TestPinecone_EnsureExisting(t *testing.T) {
	control := &fakeControl{existing: []*pinecone.Index{{Name: "other"}, {Name: "codex"}}}
	p, _ := newTestPinecone(control, &fakeData{}, testSpec())

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if control.created != nil {
		t.Error("an existing index should not be created again")
	}
}

func TestPinecone_EnsureTimeout(t *testing.T) {
	spec := testSpec()
	spec.ReadyTimeout = 20 * time.Millisecond
	p, _ := newTestPinecone(&fakeControl{notReadyFor: -1}, &fakeData{}, spec)

	err := p.Ensure(context.Background())
	if !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestPinecone_UpsertAndQuery(t *testing.T) {
	data := &fakeData{}
	p, _ := newTestPinecone(&fakeControl{}, data, testSpec())

	if err := p.Upsert(context.Background(), nil); !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("expected ErrIndexNotReady before Ensure, got %v", err)
	}
	if err := p.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := p.Upsert(context.Background(), []Vector{
		{ID: "0", Values: []float32{1, 0}, Metadata: Metadata{Quote: "q", Author: "A"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := data.upserted[0][0]
	if got.Id != "0" {
		t.Errorf("unexpected id %s", got.Id)
	}
	fields := got.Metadata.AsMap()
	if fields["book_title"] != "" || fields["quote"] != "q" {
		t.Errorf("unexpected metadata %v", fields)
	}

	matches, err := p.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "7" || matches[0].Metadata.Author != "Mahatma Gandhi" {
		t.Errorf("unexpected matches %+v", matches)
	}

	if err := p.Close(); err != nil || !data.closed {
		t.Errorf("expected the connection to be closed, err=%v", err)
	}
}
