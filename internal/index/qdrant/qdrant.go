package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"learnly/internal/domain"
)

// Index stores vectors in a Qdrant collection over gRPC. Metadata travels as
// point payload, so the vector/metadata lockstep is Qdrant's to keep and
// Persist is a no-op.
type Index struct {
	points     qdrant.PointsClient
	collection string
	dimension  int
}

// Config contains connection details for a Qdrant collection.
type Config struct {
	Addr       string
	Collection string
}

// Open connects to Qdrant and creates the collection if it does not exist.
func Open(ctx context.Context, cfg Config, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6334"
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	collections := qdrant.NewCollectionsClient(conn)
	_, err = collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: cfg.Collection})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return nil, err
		}
		_, err = collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dimension),
						Distance: qdrant.Distance_Euclid,
					},
				},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return &Index{
		points:     qdrant.NewPointsClient(conn),
		collection: cfg.Collection,
		dimension:  dimension,
	}, nil
}

// Add upserts vectors with their metadata as payload.
func (x *Index) Add(ctx context.Context, vectors [][]float32, meta []domain.ChunkMeta) error {
	if len(vectors) != len(meta) {
		return fmt.Errorf("vectors (%d) and metadata (%d) length mismatch", len(vectors), len(meta))
	}
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		if len(v) != x.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), x.dimension)
		}
		m := meta[i]
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(m.ID),
			Vectors: qdrant.NewVectors(v...),
			Payload: map[string]*qdrant.Value{
				"file":       {Kind: &qdrant.Value_StringValue{StringValue: m.File}},
				"chunk_id":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(m.ChunkID)}},
				"file_hash":  {Kind: &qdrant.Value_StringValue{StringValue: m.FileHash}},
				"text":       {Kind: &qdrant.Value_StringValue{StringValue: m.Text}},
				"collection": {Kind: &qdrant.Value_StringValue{StringValue: m.Collection}},
			},
		}
	}
	resp, err := x.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
	})
	if err != nil {
		return err
	}
	st := resp.GetResult().GetStatus()
	if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("upsert not acknowledged: status %d", st)
	}
	return nil
}

// Search returns up to k chunks ordered by ascending euclidean distance.
func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	resp, err := x.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredChunk, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		meta := domain.ChunkMeta{}
		if id := p.GetId().GetUuid(); id != "" {
			meta.ID = id
		}
		if v, ok := payload["file"]; ok {
			meta.File = v.GetStringValue()
		}
		if v, ok := payload["chunk_id"]; ok {
			meta.ChunkID = int(v.GetIntegerValue())
		}
		if v, ok := payload["file_hash"]; ok {
			meta.FileHash = v.GetStringValue()
		}
		if v, ok := payload["text"]; ok {
			meta.Text = v.GetStringValue()
		}
		if v, ok := payload["collection"]; ok {
			meta.Collection = v.GetStringValue()
		}
		out = append(out, domain.ScoredChunk{Meta: meta, Distance: p.GetScore()})
	}
	return out, nil
}

// Count returns the number of stored vectors, or zero when the collection
// cannot be reached.
func (x *Index) Count() int {
	resp, err := x.points.Count(context.Background(), &qdrant.CountPoints{
		CollectionName: x.collection,
	})
	if err != nil {
		return 0
	}
	return int(resp.GetResult().GetCount())
}

// HasFile reports whether any stored point carries the given content hash.
func (x *Index) HasFile(ctx context.Context, hash string) (bool, error) {
	limit := uint32(1)
	resp, err := x.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: x.collection,
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "file_hash",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: hash},
						},
					},
				},
			}},
		},
	})
	if err != nil {
		return false, err
	}
	return len(resp.GetResult()) > 0, nil
}

// Persist is a no-op: Qdrant owns durability for its collections.
func (x *Index) Persist() error { return nil }
