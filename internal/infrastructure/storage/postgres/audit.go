package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"boxledger/internal/core/id"
	"boxledger/internal/domain/movement"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one committed movement's full payload: the request as
// submitted and the result as returned. Large batches compress well.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	Kind              string          `db:"kind"`
	BusinessUnit      string          `db:"business_unit"`
	Actor             string          `db:"actor"`
	WorkDate          string          `db:"work_date"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService records committed movements for traceability.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// auditPayload is the stored document shape.
type auditPayload struct {
	Request *movement.Request `json:"request"`
	Result  *movement.Result  `json:"result"`
}

// Record writes one audit entry for a committed movement.
func (s *AuditService) Record(ctx context.Context, req *movement.Request, result *movement.Result) error {
	payload, err := json.Marshal(auditPayload{Request: req, Result: result})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		Kind:            string(req.Kind),
		BusinessUnit:    req.BusinessUnit,
		Actor:           req.Actor,
		WorkDate:        req.WorkDate,
		Payload:         payload,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	// Compress large payloads
	if len(payload) > s.compressThreshold {
		entry.PayloadCompressed = s.encoder.EncodeAll(payload, nil)
		entry.Payload = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO audit_log (
			id, kind, business_unit, actor, work_date,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.Kind, entry.BusinessUnit, entry.Actor, entry.WorkDate,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return WrapStorageErr(fmt.Errorf("insert audit entry: %w", err))
	}
	return nil
}

// History retrieves the audit trail of one business unit, newest first,
// decompressing stored payloads.
func (s *AuditService) History(ctx context.Context, businessUnit string, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, kind, business_unit, actor, work_date,
			   payload, payload_compressed, compression_algo, created_at
		FROM audit_log
		WHERE business_unit = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, businessUnit, limit)
	if err != nil {
		return nil, WrapStorageErr(fmt.Errorf("query audit history: %w", err))
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.Kind, &e.BusinessUnit, &e.Actor, &e.WorkDate,
			&e.Payload, &e.PayloadCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.PayloadCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit payload: %w", err)
			}
			e.Payload = decompressed
			e.PayloadCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
