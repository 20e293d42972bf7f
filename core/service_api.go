package core

import (
	"context"

	"pkt.systems/shotpdf/schema"
)

// Service is the transport-agnostic API for capture sessions.
type Service interface {
	OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	GetSession(ctx context.Context, req schema.GetSessionRequest) (schema.GetSessionResponse, error)
	Ingest(ctx context.Context, req schema.IngestRequest) (schema.IngestResponse, error)
	Clear(ctx context.Context, req schema.ClearRequest) (schema.ClearResponse, error)
	Export(ctx context.Context, req schema.ExportRequest) (schema.ExportResponse, error)
}
