package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
)

const vectorField = "vector_data"

// OpenSearchConfig holds the connection settings of an OpenSearch cluster.
type OpenSearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Insecure  bool

	// SignRequests signs every request with SigV4 for Amazon OpenSearch
	// Service, using the default AWS credential chain and Region.
	SignRequests bool
	Region       string
}

// OpenSearch is an Index backed by an OpenSearch k-NN index.
type OpenSearch struct {
	spec   IndexSpec
	client *opensearch.Client
}

func NewOpenSearch(ctx context.Context, cfg OpenSearchConfig, spec IndexSpec) (*OpenSearch, error) {
	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Insecure {
		osCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	if cfg.SignRequests {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("failed to create request signer: %w", err)
		}
		osCfg.Signer = signer
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearch{spec: spec, client: client}, nil
}

// spaceType maps a similarity metric name onto the k-NN plugin's space type.
func spaceType(metric string) string {
	switch metric {
	case "dotproduct":
		return "innerproduct"
	case "euclidean":
		return "l2"
	default:
		return "cosinesimil"
	}
}

type document struct {
	Metadata
	Vectors []float32 `json:"vector_data"`
}

func (o *OpenSearch) Ensure(ctx context.Context) error {
	existsRes, err := opensearchapi.IndicesExistsRequest{
		Index: []string{o.spec.Name},
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", o.spec.Name, err)
	}
	defer closeBody(existsRes)

	switch existsRes.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		if err := o.create(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected response checking index %s: %s", o.spec.Name, existsRes.String())
	}

	healthRes, err := opensearchapi.ClusterHealthRequest{
		Index:         []string{o.spec.Name},
		WaitForStatus: "yellow",
		Timeout:       o.spec.ReadyTimeout,
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("failed to read health of index %s: %w", o.spec.Name, err)
	}
	defer closeBody(healthRes)

	if healthRes.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexNotReady, healthRes.String())
	}
	var health struct {
		Status   string `json:"status"`
		TimedOut bool   `json:"timed_out"`
	}
	if err := json.NewDecoder(healthRes.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health of index %s: %w", o.spec.Name, err)
	}
	if health.TimedOut || (health.Status != "yellow" && health.Status != "green") {
		return fmt.Errorf("%w: %s is %s", ErrIndexNotReady, o.spec.Name, health.Status)
	}

	return nil
}

func (o *OpenSearch) create(ctx context.Context) error {
	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				vectorField: map[string]any{
					"type":      "knn_vector",
					"dimension": o.spec.Dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"engine":     "lucene",
						"space_type": spaceType(o.spec.Metric),
					},
				},
				"quote":      map[string]any{"type": "text"},
				"author":     map[string]any{"type": "keyword"},
				"book_title": map[string]any{"type": "keyword"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: o.spec.Name,
		Body:  bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", o.spec.Name, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("unexpected response creating index %s: %s", o.spec.Name, res.String())
	}
	return nil
}

func (o *OpenSearch) Upsert(ctx context.Context, vectors []Vector) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, v := range vectors {
		action := map[string]any{
			"index": map[string]string{"_index": o.spec.Name, "_id": v.ID},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to encode bulk action for %s: %w", v.ID, err)
		}
		if err := enc.Encode(document{Metadata: v.Metadata, Vectors: v.Values}); err != nil {
			return fmt.Errorf("failed to encode document %s: %w", v.ID, err)
		}
	}

	res, err := opensearchapi.BulkRequest{
		Index: o.spec.Name,
		Body:  &body,
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("failed to upsert %d documents: %w", len(vectors), err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("unexpected bulk response: %s", res.String())
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if result.Errors {
		var failed []string
		for _, item := range result.Items {
			for _, op := range item {
				if op.Status >= 300 {
					failed = append(failed, fmt.Sprintf("%s (%d): %s", op.ID, op.Status, op.Error))
				}
			}
		}
		return fmt.Errorf("bulk upsert rejected %d documents: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// Opensearch API is stupid :(
type query struct {
	Knn knnSearch `json:"knn"`
}

type knnSearch struct {
	vectorData `json:"vector_data"`
}

type vectorData struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

func (o *OpenSearch) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	queryBytes, err := json.Marshal(struct {
		Size   int      `json:"size"`
		Source []string `json:"_source"`
		Query  query    `json:"query"`
	}{
		Size:   topK,
		Source: []string{"quote", "author", "book_title"},
		Query: query{
			Knn: knnSearch{
				vectorData: vectorData{
					Vector: vector,
					K:      topK,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vector query: %w", err)
	}

	searchResponse, err := opensearchapi.SearchRequest{
		Index: []string{o.spec.Name},
		Body:  bytes.NewReader(queryBytes),
	}.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector query: %w", err)
	}
	defer closeBody(searchResponse)

	if searchResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response to vector query: %s", searchResponse.String())
	}

	result := struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float32  `json:"_score"`
				Source Metadata `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}{}
	if err := json.NewDecoder(searchResponse.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to deserialize search results: %w", err)
	}

	matches := make([]Match, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		matches[i] = Match{ID: hit.ID, Score: hit.Score, Metadata: hit.Source}
	}
	return matches, nil
}

func closeBody(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}
