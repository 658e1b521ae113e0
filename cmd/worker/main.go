package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jewelshot/internal/adapter/repo"
	"jewelshot/internal/infra"
	"jewelshot/internal/optimize"
	"jewelshot/internal/providers/kie"
	"jewelshot/internal/storage"
)

const idlePollInterval = 2 * time.Second

type queueWorker struct {
	ctx        context.Context
	repo       *repo.QueueRepository
	pipeline   *optimize.Pipeline
	store      *storage.FileStore
	httpClient *http.Client
	baseURL    string
	logger     infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	kieClient, err := kie.NewClient(kie.Options{
		APIKey:  cfg.KieAPIKey,
		BaseURL: cfg.KieBaseURL,
		Params: kie.Params{
			Model:           cfg.KieModel,
			PollInterval:    cfg.PollInterval,
			MaxPollAttempts: cfg.PollMaxAttempts,
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure kie client")
	}
	if !kieClient.HasCredentials() {
		logger.Warn().Msg("worker: KIE_AI_API_KEY not configured, items will complete as passthrough")
	}

	worker := &queueWorker{
		ctx:        ctx,
		repo:       repo.NewQueueRepository(runner),
		pipeline:   optimize.New(kieClient, logger),
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.StorageBaseURL, "/"),
		logger:     logger,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *queueWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		item, err := w.repo.Claim(w.ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNoItem) {
				time.Sleep(idlePollInterval)
				continue
			}
			if w.ctx.Err() != nil {
				return w.ctx.Err()
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim item")
			time.Sleep(idlePollInterval)
			continue
		}

		w.process(item)
	}
}

// process runs one item through the full orchestration. Claiming already
// reported 10%; this drives 30 (source obtained), 50 (original persisted),
// 80 (outcome resolved, via the pipeline), and the terminal write at 100.
func (w *queueWorker) process(item *repo.QueueItem) {
	w.logger.Info().Str("item_id", item.ID).Msg("worker: picked item")

	sourceURL, sourceData, mime, err := w.resolveSource(item)
	if err != nil {
		w.logger.Error().Err(err).Str("item_id", item.ID).Msg("worker: source unavailable")
		w.complete(item.ID, optimize.StatusFailed, "", err.Error())
		return
	}
	w.progress(item.ID, optimize.CheckpointFetched)

	if len(sourceData) > 0 {
		key := fmt.Sprintf("originals/%s%s", item.ID, extensionForMIME(mime))
		if saved, err := w.store.Write(w.ctx, key, sourceData); err != nil {
			w.logger.Warn().Err(err).Str("item_id", item.ID).Msg("worker: persist original failed")
		} else {
			w.logger.Debug().Str("item_id", item.ID).Str("key", saved).Msg("worker: original persisted")
		}
	}
	w.progress(item.ID, optimize.CheckpointOriginal)

	result := w.pipeline.Optimize(w.ctx, sourceURL, item.Prompt, item.Settings, itemProgress{worker: w, itemID: item.ID})

	finalURL := result.OptimizedURL
	if result.Success {
		if key, err := w.persistOptimized(item.ID, result.OptimizedURL); err != nil {
			w.logger.Warn().Err(err).Str("item_id", item.ID).Msg("worker: persist optimized failed")
		} else {
			finalURL = w.baseURL + "/" + key
		}
	} else {
		finalURL = result.OriginalURL
	}

	history := repo.HistoryRecord{
		QueueItemID:  item.ID,
		Title:        repo.HistoryTitle(sourceURL),
		OriginalURL:  sourceURL,
		OptimizedURL: finalURL,
		Status:       result.Status,
		TaskID:       result.TaskID,
	}
	if err := w.repo.InsertHistory(w.ctx, history); err != nil {
		w.logger.Error().Err(err).Str("item_id", item.ID).Msg("worker: insert history failed")
	}

	w.complete(item.ID, result.Status, finalURL, result.Error)
	w.logger.Info().
		Str("item_id", item.ID).
		Str("status", result.Status).
		Msg("worker: item finished")
}

// resolveSource yields the URL handed to the provider plus, where available,
// the raw bytes for the original-artifact copy.
func (w *queueWorker) resolveSource(item *repo.QueueItem) (string, []byte, string, error) {
	if item.ImageURL != "" {
		if strings.HasPrefix(item.ImageURL, "data:") {
			data, mime, err := decodeDataURI(item.ImageURL)
			if err != nil {
				return "", nil, "", err
			}
			return item.ImageURL, data, mime, nil
		}
		data, mime, err := w.fetchImage(item.ImageURL)
		if err != nil {
			// The provider can still fetch the URL itself; the local copy is
			// best effort.
			w.logger.Warn().Err(err).Str("item_id", item.ID).Msg("worker: source download failed")
			return item.ImageURL, nil, "", nil
		}
		return item.ImageURL, data, mime, nil
	}
	if item.FileID != "" {
		key := "uploads/" + item.FileID
		data, err := w.store.Read(w.ctx, key)
		if err != nil {
			return "", nil, "", fmt.Errorf("worker: file id %q: %w", item.FileID, err)
		}
		return w.baseURL + "/" + key, data, mimeForKey(key), nil
	}
	return "", nil, "", errors.New("worker: queue item has no image source")
}

func (w *queueWorker) fetchImage(imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(w.ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("worker: build download request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("worker: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("worker: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("worker: read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

func (w *queueWorker) persistOptimized(itemID, resultURL string) (string, error) {
	data, mime, err := w.fetchImage(resultURL)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("optimized/%s%s", itemID, extensionForMIME(mime))
	return w.store.Write(w.ctx, key, data)
}

func (w *queueWorker) progress(itemID string, percent int) {
	if err := w.repo.Progress(w.ctx, itemID, percent); err != nil {
		w.logger.Warn().Err(err).Str("item_id", itemID).Int("percent", percent).Msg("worker: progress update failed")
	}
}

func (w *queueWorker) complete(itemID, status, finalURL, errMessage string) {
	if err := w.repo.Complete(w.ctx, itemID, status, finalURL, errMessage); err != nil {
		w.logger.Error().Err(err).Str("item_id", itemID).Msg("worker: complete failed")
	}
}

// itemProgress adapts the repository to the pipeline's reporter interface.
type itemProgress struct {
	worker *queueWorker
	itemID string
}

func (p itemProgress) Progress(ctx context.Context, percent int) {
	p.worker.progress(p.itemID, percent)
}

func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", errors.New("worker: not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("worker: malformed data uri")
	}
	mime := "image/png"
	if idx := strings.Index(meta, ";"); idx > 0 {
		mime = meta[:idx]
	} else if meta != "" {
		mime = meta
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", errors.New("worker: data uri must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("worker: decode data uri: %w", err)
	}
	return data, mime, nil
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func mimeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}
