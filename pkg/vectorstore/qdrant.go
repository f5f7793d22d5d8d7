package vectorstore

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    pb "github.com/qdrant/go-client/qdrant"
    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials/insecure"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// QdrantStore 基于 Qdrant gRPC 接口的向量库实现
type QdrantStore struct {
    conn        *grpc.ClientConn
    points      pb.PointsClient
    collections pb.CollectionsClient
    collection  string
    log         logger.Logger
}

func NewQdrantStore(log logger.Logger) (*QdrantStore, error) {
    cfg := config.GetQdrantConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }

    addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
    conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
    if err != nil {
        return nil, fmt.Errorf("qdrant connect: %w", err)
    }

    return &QdrantStore{
        conn:        conn,
        points:      pb.NewPointsClient(conn),
        collections: pb.NewCollectionsClient(conn),
        collection:  cfg.Collection,
        log:         log,
    }, nil
}

// EnsureCollection 集合不存在时按余弦距离创建
func (q *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
    resp, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
    if err != nil {
        return fmt.Errorf("list collections: %w", err)
    }
    for _, c := range resp.Collections {
        if c.Name == q.collection {
            return nil
        }
    }

    _, err = q.collections.Create(ctx, &pb.CreateCollection{
        CollectionName: q.collection,
        VectorsConfig: &pb.VectorsConfig{
            Config: &pb.VectorsConfig_Params{
                Params: &pb.VectorParams{
                    Size:     uint64(dim),
                    Distance: pb.Distance_Cosine,
                },
            },
        },
    })
    if err != nil {
        return fmt.Errorf("create collection %s: %w", q.collection, err)
    }
    q.log.Info("created qdrant collection",
        logger.String("collection", q.collection),
        logger.Int("dim", dim),
    )
    return nil
}

func (q *QdrantStore) Insert(ctx context.Context, vector []float32, metadata map[string]string) (string, error) {
    id := uuid.NewString()

    payload := make(map[string]*pb.Value, len(metadata))
    for k, v := range metadata {
        payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
    }

    _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
        CollectionName: q.collection,
        Points: []*pb.PointStruct{
            {
                Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
                Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
                Payload: payload,
            },
        },
    })
    if err != nil {
        return "", fmt.Errorf("upsert point: %w", err)
    }
    return id, nil
}

func (q *QdrantStore) Query(ctx context.Context, vector []float32, topK int, outputFields []string) ([]Hit, error) {
    withPayload := &pb.WithPayloadSelector{
        SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
    }
    if len(outputFields) > 0 {
        withPayload = &pb.WithPayloadSelector{
            SelectorOptions: &pb.WithPayloadSelector_Include{
                Include: &pb.PayloadIncludeSelector{Fields: outputFields},
            },
        }
    }

    resp, err := q.points.Search(ctx, &pb.SearchPoints{
        CollectionName: q.collection,
        Vector:         vector,
        Limit:          uint64(topK),
        WithPayload:    withPayload,
    })
    if err != nil {
        return nil, fmt.Errorf("search points: %w", err)
    }

    hits := make([]Hit, len(resp.Result))
    for i, pt := range resp.Result {
        meta := make(map[string]string, len(pt.Payload))
        for k, v := range pt.Payload {
            meta[k] = v.GetStringValue()
        }
        hits[i] = Hit{
            ID:       pt.Id.GetUuid(),
            Score:    pt.Score,
            Metadata: meta,
        }
    }
    return hits, nil
}

func (q *QdrantStore) Close() error {
    return q.conn.Close()
}
