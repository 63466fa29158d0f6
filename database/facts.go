package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	loadSql "github.com/siherrmann/factual/sql"
)

// FactsDBHandlerFunctions defines the interface for Facts database operations.
type FactsDBHandlerFunctions interface {
	ReplaceFacts(ctx context.Context, facts []model.FactRecord, embeddings [][]float32) error
	SelectFact(position int) (*model.FactRecord, error)
	CountFacts() (int, error)
	SelectFactsBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]model.RetrievalHit, error)
}

// FactsDBHandler mirrors the corpus and its embeddings into a pgvector table
type FactsDBHandler struct {
	db *helper.Database
}

// NewFactsDBHandler creates a new facts database handler.
// It initializes the database connection and loads fact-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewFactsDBHandler(db *helper.Database, embeddingDim int, force bool) (*FactsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	factsDbHandler := &FactsDBHandler{
		db: db,
	}

	err := loadSql.LoadFactsSql(factsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load facts sql", err)
	}

	err = factsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized FactsDBHandler")

	return factsDbHandler, nil
}

// CreateTable creates the 'facts' table in the database.
// If the table already exists, it does not create it again.
func (h *FactsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_facts($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing facts table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table facts")

	return nil
}

// ReplaceFacts replaces the stored corpus with the given facts and embeddings in one transaction.
// Facts are keyed by their corpus position.
func (h *FactsDBHandler) ReplaceFacts(ctx context.Context, facts []model.FactRecord, embeddings [][]float32) error {
	if len(facts) != len(embeddings) {
		return helper.NewError("replace facts", fmt.Errorf("got %d facts but %d embeddings", len(facts), len(embeddings)))
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `SELECT truncate_facts();`)
	if err != nil {
		return helper.NewError("truncate facts", err)
	}

	for i, fact := range facts {
		var position int
		var createdAt time.Time
		err := tx.QueryRowContext(
			ctx,
			`SELECT * FROM insert_fact($1, $2, $3, $4, $5, $6, $7, $8)`,
			fact.Position,
			fact.ID,
			fact.Text,
			fact.Label,
			fact.Source,
			fact.Date,
			fact.Topic,
			pgvector.NewVector(embeddings[i]),
		).Scan(&position, &createdAt)
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert fact %d", fact.Position), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Replaced facts", "count", len(facts))

	return nil
}

// SelectFact returns the fact stored at the given corpus position
func (h *FactsDBHandler) SelectFact(position int) (*model.FactRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_fact($1)`,
		position,
	)

	fact := &model.FactRecord{}
	err := row.Scan(
		&fact.Position,
		&fact.ID,
		&fact.Text,
		&fact.Label,
		&fact.Source,
		&fact.Date,
		&fact.Topic,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return fact, nil
}

// CountFacts returns the number of stored facts
func (h *FactsDBHandler) CountFacts() (int, error) {
	var count int
	err := h.db.Instance.QueryRow(`SELECT count_facts()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count facts", err)
	}
	return count, nil
}

// SelectFactsBySimilarity returns at most limit facts with cosine similarity >= threshold,
// most similar first and ties by corpus position. The hit index is the corpus position.
func (h *FactsDBHandler) SelectFactsBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]model.RetrievalHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_facts_by_similarity($1, $2, $3)`,
		pgvector.NewVector(embedding),
		limit,
		threshold,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hits := []model.RetrievalHit{}
	for rows.Next() {
		fact := &model.FactRecord{}
		hit := model.RetrievalHit{Fact: fact}
		err := rows.Scan(
			&fact.Position,
			&fact.ID,
			&fact.Text,
			&fact.Label,
			&fact.Source,
			&fact.Date,
			&fact.Topic,
			&hit.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hit.Index = fact.Position
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}
