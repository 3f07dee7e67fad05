package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "leaf-doctor/internal/application"
	"leaf-doctor/internal/container"
	"leaf-doctor/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я помогаю распознать болезни листьев.

📸 Отправьте фото листа, и я назову вероятную болезнь и покажу, на какие участки смотрела модель.

📋 Команды:
/diagnose — проверить лист
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото одного листа
2️⃣ Бот улучшит снимок и проверит его в четырёх ракурсах
3️⃣ Вы получите диагноз, уверенность и тепловую карту

💡 Рекомендации:
• Снимайте при дневном свете
• Лист должен занимать большую часть кадра
• Фото должно быть чётким

📋 Команды:
/diagnose — проверить лист
/cancel — отменить операцию`

	msgAwaitingLeaf   = "📸 Отправьте фото листа для диагностики."
	msgCancelled      = "❌ Операция отменена. Отправьте /diagnose для новой проверки."
	msgSendPhoto      = "📸 Пожалуйста, отправьте фото листа."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing     = "⏳ Анализирую лист..."
	msgBusy           = "⏳ Предыдущее фото ещё обрабатывается, подождите."
	msgInvalidImage   = "⚠️ Не удалось прочитать изображение. Пришлите фото в формате JPEG или PNG."
	msgTooLarge       = "⚠️ Файл слишком большой."
	msgInternalError  = "⚠️ Не удалось обработать фото. Попробуйте позже."
	msgNoHeatmap      = "ℹ️ Тепловую карту построить не удалось."
	captionHeatmap    = "🔥 Участки, повлиявшие на решение"
)

var errTooLarge = errors.New("file exceeds upload limit")

// api часть tgbotapi.BotAPI, которой пользуется бот.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api       api
	token     string
	users     *app.UserService
	diagnoses *app.DiagnosisService
	logger    *zap.Logger
	client    *http.Client
	maxBytes  int64
	download  func(ctx context.Context, fileID string) ([]byte, error)
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, maxBytes int64, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("telegram authorized", zap.String("account", botAPI.Self.UserName))

	return newBot(botAPI, token, c, maxBytes, logger), nil
}

func newBot(a api, token string, c *container.Container, maxBytes int64, logger *zap.Logger) *Bot {
	b := &Bot{
		api:       a,
		token:     token,
		users:     c.UserService,
		diagnoses: c.DiagnosisService,
		logger:    logger.Named("telegram"),
		client:    &http.Client{Timeout: 30 * time.Second},
		maxBytes:  maxBytes,
	}
	b.download = b.downloadFile
	return b
}

// Run обрабатывает обновления до отмены ctx. Каждое сообщение в своей
// горутине; повторное фото от занятого пользователя отклоняется.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if fileID := imageFileID(msg); fileID != "" {
		b.handlePhoto(ctx, msg, fileID)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// imageFileID самое крупное фото или документ с картинкой.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	var err error

	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "diagnose":
		_, err = b.users.AwaitLeaf(ctx, userID, chatID)
		b.sendMessage(chatID, msgAwaitingLeaf)

	case "cancel":
		_, err = b.users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}

	if err != nil {
		b.logger.Error("update user state", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// handlePhoto скачивает фото, ставит диагноз и отвечает текстом и картой.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	log := b.logger.With(zap.Int64("user_id", userID), zap.Int64("chat_id", chatID))

	if _, err := b.users.BeginDiagnosis(ctx, userID, chatID); err != nil {
		if errors.Is(err, app.ErrBusy) {
			b.sendMessage(chatID, msgBusy)
			return
		}
		log.Error("begin diagnosis", zap.Error(err))
		b.sendMessage(chatID, msgInternalError)
		return
	}

	ok := false
	defer func() {
		if _, err := b.users.FinishDiagnosis(context.WithoutCancel(ctx), userID, chatID, ok); err != nil {
			log.Error("finish diagnosis", zap.Error(err))
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	data, err := b.download(ctx, fileID)
	if err != nil {
		log.Warn("download photo", zap.Error(err))
		if errors.Is(err, errTooLarge) {
			b.sendMessage(chatID, msgTooLarge)
		} else {
			b.sendMessage(chatID, msgInternalError)
		}
		return
	}

	d, err := b.diagnoses.Classify(ctx, data)
	if err != nil {
		log.Warn("diagnosis failed", zap.String("kind", entity.ErrorKind(err)), zap.Error(err))
		if errors.Is(err, entity.ErrInvalidImage) {
			b.sendMessage(chatID, msgInvalidImage)
		} else {
			b.sendMessage(chatID, msgInternalError)
		}
		return
	}
	ok = true

	b.sendMessage(chatID, formatDiagnosis(d))
	if d.Heatmap == nil {
		b.sendMessage(chatID, msgNoHeatmap)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "heatmap.png", Bytes: d.Heatmap.PNG})
	photo.Caption = captionHeatmap
	if _, err := b.api.Send(photo); err != nil {
		log.Error("send heatmap", zap.Error(err))
	}
}

// formatDiagnosis текст ответа: класс, уверенность и все вероятности.
func formatDiagnosis(d *entity.Diagnosis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🌿 Диагноз: %s\n📊 Уверенность: %s\n\n", d.Label, d.ConfidencePercent())
	for _, s := range d.Breakdown() {
		marker := "•"
		if s.Label == d.Label {
			marker = "▶"
		}
		fmt.Fprintf(&sb, "%s %s: %.1f%%\n", marker, s.Label, s.Probability*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if int64(file.FileSize) > b.maxBytes {
		return nil, errTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, errTooLarge
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
