package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"logicforge/internal/domain"
	"logicforge/internal/events"
	"logicforge/internal/render"
)

// ExportResult is a generated document together with the program state after finalize.
type ExportResult struct {
	Document    domain.GeneratedDocument
	ContentType string
	Content     []byte
	Program     domain.Program
}

// GenerateDocument renders the program, records the generation and finalizes
// the program in one transaction. Finalize is a no-op before the last step.
func (e Engine) GenerateDocument(ctx context.Context, programID, format, actorID string) (ExportResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ExportResult{}, err
	}
	defer tx.Rollback()

	snap, err := e.Repo.Snapshot(ctx, tx, programID)
	if err != nil {
		return ExportResult{}, err
	}
	doc, err := render.Render(format, snap)
	if err != nil {
		return ExportResult{}, err
	}
	record := domain.GeneratedDocument{
		ID:          newID(),
		ProgramID:   programID,
		Format:      doc.Format,
		Filename:    doc.Filename,
		SizeBytes:   len(doc.Content),
		GeneratedAt: e.timestamp(),
	}
	if err := e.Repo.InsertDocument(ctx, tx, record); err != nil {
		return ExportResult{}, fmt.Errorf("record document: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.DocumentGenerated, programID, "document", record.ID, actorID, events.EventPayload{
		"format":   record.Format,
		"filename": record.Filename,
	}); err != nil {
		return ExportResult{}, err
	}
	fin, err := e.finalizeTx(ctx, tx, programID, actorID)
	if err != nil {
		return ExportResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ExportResult{}, err
	}
	e.Metrics.DocumentGenerated(record.Format)
	e.logger().Info("program document generated",
		zap.String("program_id", programID),
		zap.String("format", record.Format),
		zap.Bool("finalized", fin.Advanced))
	return ExportResult{
		Document:    record,
		ContentType: doc.ContentType,
		Content:     doc.Content,
		Program:     fin.Program,
	}, nil
}

func (e Engine) ListDocuments(ctx context.Context, programID string) ([]domain.GeneratedDocument, error) {
	return e.Repo.ListDocuments(ctx, programID)
}

// DataCollectionForm builds an XLSForm from the program's indicators. It is
// read-only and does not count as document generation.
func (e Engine) DataCollectionForm(ctx context.Context, programID string) (render.Document, error) {
	p, err := e.Repo.GetProgram(ctx, nil, programID)
	if err != nil {
		return render.Document{}, err
	}
	outcomes, err := e.Repo.ListOutcomes(ctx, nil, programID)
	if err != nil {
		return render.Document{}, err
	}
	return render.XLSForm(p.Title, outcomes), nil
}
