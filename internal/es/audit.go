package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/Skotchmaster/auth_service/internal/events"
)

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

func NewClient(cfg Config) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// Ping checks that the cluster answers.
func Ping(ctx context.Context, client *elasticsearch.Client) error {
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}
	return nil
}

// AuditIndexer stores security events as documents, one per event id.
type AuditIndexer struct {
	Client *elasticsearch.Client
	Index  string
	Log    *slog.Logger
}

func NewAuditIndexer(client *elasticsearch.Client, index string, log *slog.Logger) *AuditIndexer {
	if log == nil {
		log = slog.Default()
	}
	return &AuditIndexer{Client: client, Index: index, Log: log}
}

func (a *AuditIndexer) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	res, err := a.Client.Index(
		a.Index,
		bytes.NewReader(body),
		a.Client.Index.WithContext(ctx),
		a.Client.Index.WithDocumentID(e.ID),
	)
	if err != nil {
		return fmt.Errorf("index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		a.Log.Error("audit_index_failed", "status", res.StatusCode, "type", e.Type, "body", string(msg))
		return fmt.Errorf("index audit event: %s", res.Status())
	}
	return nil
}
