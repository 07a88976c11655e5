package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"service-desk/backend/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poller long-polls Telegram and hands every message update to the dispatcher
type Poller struct {
	api         *tgbotapi.BotAPI
	dispatcher  *Dispatcher
	pollTimeout int
	log         *logger.Logger
}

func NewPoller(api *tgbotapi.BotAPI, dispatcher *Dispatcher, pollTimeout int, log *logger.Logger) *Poller {
	return &Poller{api: api, dispatcher: dispatcher, pollTimeout: pollTimeout, log: log}
}

// Run blocks until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.pollTimeout

	updates := p.api.GetUpdatesChan(u)
	p.log.Info("Bot polling started", "bot", p.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.log.Info("Bot polling stopped")
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			upd, ok := FromTelegram(raw)
			if !ok {
				continue
			}
			p.handle(ctx, upd)
		}
	}
}

func (p *Poller) handle(ctx context.Context, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Panic while handling update", "update_id", upd.ID, "panic", fmt.Sprint(r))
		}
	}()

	if err := p.dispatcher.Handle(ctx, upd); err != nil {
		p.log.WithChat(upd.ExternalID).LogError(err, "Failed to handle update", "update_id", upd.ID)
	}
}

// FileClient downloads files users send to the bot
type FileClient struct {
	api     *tgbotapi.BotAPI
	http    *http.Client
	maxSize int64
}

func NewFileClient(api *tgbotapi.BotAPI, client *http.Client, maxSize int64) *FileClient {
	return &FileClient{api: api, http: client, maxSize: maxSize}
}

func (f *FileClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file %s: status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, f.maxSize)
	}
	return data, nil
}
