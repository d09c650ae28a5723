package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

const panelCallbackPrefix = "vc"

const (
	menuMain  = "main"
	menuRatio = "ratio"
	menuTheme = "theme"
)

// panel remembers which message holds a chat's control panel.
type panel struct {
	MessageID int
	Menu      string
}

type panelStore struct {
	mu     sync.Mutex
	panels map[int64]panel
}

func newPanelStore() *panelStore {
	return &panelStore{panels: make(map[int64]panel)}
}

func (s *panelStore) Get(chatID int64) panel {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[chatID]
	if !ok || p.Menu == "" {
		p.Menu = menuMain
	}
	return p
}

func (s *panelStore) Update(chatID int64, fn func(p *panel)) panel {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.panels[chatID]
	if p.Menu == "" {
		p.Menu = menuMain
	}
	fn(&p)
	s.panels[chatID] = p
	return p
}

func (s *panelStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.panels, chatID)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	action, args, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}

	chatID := q.Message.Chat.ID
	h.panels.Update(chatID, func(p *panel) { p.MessageID = q.Message.MessageID })
	ctrl := h.studio(chatID)

	switch action {
	case "menu":
		h.panels.Update(chatID, func(p *panel) { p.Menu = firstArg(args, menuMain) })
		_ = h.tg.AnswerCallback(q.ID, "", false)

	case "ratio":
		ar := poster.AspectRatio(decodeRatio(firstArg(args, "")))
		h.panels.Update(chatID, func(p *panel) { p.Menu = menuMain })
		if _, err := ctrl.UpdateSettings(poster.SettingsPatch{AspectRatio: &ar}); err != nil {
			_ = h.tg.AnswerCallback(q.ID, "Unknown aspect ratio.", true)
			break
		}
		_ = h.tg.AnswerCallback(q.ID, "Aspect ratio "+string(ar), false)

	case "mode":
		mode, ok := poster.ParsePromptMode(firstArg(args, ""))
		if !ok {
			_ = h.tg.AnswerCallback(q.ID, "Unknown prompt mode.", true)
			break
		}
		_, _ = ctrl.UpdateSettings(poster.SettingsPatch{PromptMode: &mode})
		_ = h.tg.AnswerCallback(q.ID, "", false)

	case "bg":
		st := ctrl.SetRemoveBackground(!ctrl.Snapshot().RemoveBackground)
		_ = h.tg.AnswerCallback(q.ID, "Background removal "+onOff(st.RemoveBackground), false)
		if st.Busy.Describing || st.Busy.RemovingBackground {
			if err := h.renderPanel(chatID, true); err != nil {
				return err
			}
			waitIdle(ctx, ctrl)
		}

	case "theme":
		h.panels.Update(chatID, func(p *panel) { p.Menu = menuMain })
		if _, err := ctrl.SetTheme(firstArg(args, "")); err != nil {
			_ = h.tg.AnswerCallback(q.ID, "Unknown theme.", true)
			break
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)

	case "view":
		view, ok := studio.ParseView(firstArg(args, ""))
		if !ok {
			_ = h.tg.AnswerCallback(q.ID, "Unknown view.", true)
			break
		}
		st, _ := ctrl.SetCanvasView(view)
		_ = h.tg.AnswerCallback(q.ID, "", false)
		if err := h.sendCanvas(chatID, st); err != nil {
			return err
		}

	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.generate(ctx, chatID); err != nil {
			return err
		}

	case "advice":
		_ = h.tg.AnswerCallback(q.ID, "Asking for advice…", false)
		if err := h.advice(ctx, chatID); err != nil {
			return err
		}

	case "download":
		img, name, err := ctrl.Download()
		if errors.Is(err, studio.ErrNoPoster) {
			_ = h.tg.AnswerCallback(q.ID, msgNoPoster, true)
			break
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
		if err := h.tg.SendDocument(chatID, name, img.Data, ""); err != nil {
			return err
		}

	case "pdf":
		data, name, err := ctrl.ExportPDF()
		if errors.Is(err, studio.ErrNoPoster) {
			_ = h.tg.AnswerCallback(q.ID, msgNoPoster, true)
			break
		}
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, "PDF export failed.", true)
			break
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
		if err := h.tg.SendDocument(chatID, name, data, ""); err != nil {
			return err
		}

	case "clear":
		ctrl.ClearImage()
		_ = h.tg.AnswerCallback(q.ID, "Image removed.", false)

	default:
		_ = h.tg.AnswerCallback(q.ID, "", false)
	}

	return h.renderPanel(chatID, true)
}

// renderPanel edits the chat's panel in place when possible and sends a new
// one otherwise.
func (h *Handler) renderPanel(chatID int64, edit bool) error {
	p := h.panels.Get(chatID)
	st := h.studio(chatID).Snapshot()

	text := panelText(st)
	kb := panelKeyboard(p.Menu, st)

	if edit && p.MessageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, p.MessageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.panels.Update(chatID, func(p *panel) { p.MessageID = msgID })
	return nil
}

func (h *Handler) generate(ctx context.Context, chatID int64) error {
	ctrl := h.studio(chatID)
	if ctrl.Snapshot().ActiveImage() == nil {
		return h.tg.SendText(chatID, msgSendPhoto)
	}

	h.tg.SendUploading(chatID)
	st, err := ctrl.Generate(ctx)
	switch {
	case errors.Is(err, studio.ErrNoProductImage):
		return h.tg.SendText(chatID, msgSendPhoto)
	case errors.Is(err, studio.ErrBusy):
		return h.tg.SendText(chatID, "⏳ A poster is already being generated.")
	case errors.Is(err, studio.ErrNotReady):
		return h.tg.SendText(chatID, msgNotReady)
	case err != nil:
		return err
	}

	if st.Error != "" {
		return h.tg.SendText(chatID, "❌ "+st.Error)
	}
	if st.Generated == nil {
		return nil
	}
	return h.sendCanvas(chatID, st)
}

func (h *Handler) advice(ctx context.Context, chatID int64) error {
	h.tg.SendTyping(chatID)
	st, err := h.studio(chatID).GetAdvice(ctx)
	switch {
	case errors.Is(err, studio.ErrNoPoster):
		return h.tg.SendText(chatID, msgNoPoster)
	case errors.Is(err, studio.ErrBusy):
		return nil
	case err != nil:
		return err
	}
	return h.tg.SendText(chatID, adviceText(st.Advice))
}

func (h *Handler) sendCanvas(chatID int64, st studio.State) error {
	canvas := st.Canvas()
	if canvas.Image == nil {
		return h.tg.SendText(chatID, msgSendPhoto)
	}
	return h.tg.SendPhoto(chatID, *canvas.Image, canvas.Label)
}

// waitIdle blocks until the describe and background removal chain settles.
func waitIdle(ctx context.Context, ctrl *studio.Controller) {
	updates, cancel := ctrl.Subscribe()
	defer cancel()

	idle := func(st studio.State) bool {
		return !st.Busy.Describing && !st.Busy.RemovingBackground
	}
	if idle(ctrl.Snapshot()) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok || idle(st) {
				return
			}
		}
	}
}

func panelText(st studio.State) string {
	var b strings.Builder
	b.WriteString("🎨 VisionCraft AI\n\n")

	switch {
	case st.Product == nil:
		b.WriteString("Photo: (none)\n")
	case st.Busy.Describing:
		b.WriteString("Photo: analyzing product…\n")
	default:
		b.WriteString("Photo: " + truncateLine(st.Product.Description, 120) + "\n")
	}

	bg := onOff(st.RemoveBackground)
	switch {
	case st.Busy.RemovingBackground:
		bg += " (removing…)"
	case st.RemoveBackground && st.Cutout != nil:
		bg += " ✅"
	}
	b.WriteString("Background removal: " + bg + "\n")

	b.WriteString(fmt.Sprintf("Aspect ratio: %s\n", st.Settings.AspectRatio))
	b.WriteString(fmt.Sprintf("Prompt mode: %s\n", modeName(st.Settings.PromptMode)))
	b.WriteString("Prompt: " + truncateLine(st.Settings.EffectivePrompt(), 80) + "\n")
	b.WriteString(fmt.Sprintf("Creativity: %s%%\n", poster.CreativityPercent(st.Settings.Creativity)))
	b.WriteString("Theme: " + st.Theme.Name() + "\n")
	b.WriteString("Canvas: " + st.Canvas().Label + "\n")

	switch {
	case st.Busy.Generating:
		b.WriteString("\n⏳ Generating poster…\n")
	case st.Busy.FetchingAdvice:
		b.WriteString("\n⏳ Fetching advice…\n")
	}
	if st.Error != "" {
		b.WriteString("\n❌ " + st.Error + "\n")
	}
	if st.Product == nil {
		b.WriteString("\n📷 Send a product photo to start.\n")
	}

	return strings.TrimSpace(b.String())
}

func adviceText(list []studio.Advice) string {
	var b strings.Builder
	b.WriteString("💡 AI Assistant\n")
	for i, a := range list {
		b.WriteString(fmt.Sprintf("\n%d) %s", i+1, a.Text))
	}
	return b.String()
}

func panelKeyboard(menu string, st studio.State) tgbotapi.InlineKeyboardMarkup {
	switch menu {
	case menuRatio:
		return ratioKeyboard(st)
	case menuTheme:
		return themeKeyboard(st)
	default:
		return mainKeyboard(st)
	}
}

func mainKeyboard(st studio.State) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📐 "+string(st.Settings.AspectRatio), cb("menu", menuRatio)),
			tgbotapi.NewInlineKeyboardButtonData("🎨 "+st.Theme.Name(), cb("menu", menuTheme)),
		},
	}

	var modeRow []tgbotapi.InlineKeyboardButton
	for _, o := range poster.PromptModes() {
		modeRow = append(modeRow, tgbotapi.NewInlineKeyboardButtonData(
			checked(o.Name, o.Key == string(st.Settings.PromptMode)), cb("mode", o.Key)))
	}
	rows = append(rows, modeRow)

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✂️ Remove background: "+onOff(st.RemoveBackground), cb("bg")),
	})

	if st.Product == nil {
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	// Generate stays hidden until the photo is described and cut out.
	generate := tgbotapi.NewInlineKeyboardButtonData("✨ Generate", cb("generate"))
	if st.Busy.Describing || st.Busy.RemovingBackground {
		generate = tgbotapi.NewInlineKeyboardButtonData("⏳ Preparing…", cb("menu", menuMain))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		generate,
		tgbotapi.NewInlineKeyboardButtonData("🗑 Remove image", cb("clear")),
	})

	if st.Generated != nil {
		view := st.View
		if view == "" {
			view = studio.ViewGenerated
		}
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(checked("Original", view == studio.ViewOriginal), cb("view", string(studio.ViewOriginal))),
				tgbotapi.NewInlineKeyboardButtonData(checked("Generated", view == studio.ViewGenerated), cb("view", string(studio.ViewGenerated))),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("💡 Advice", cb("advice")),
				tgbotapi.NewInlineKeyboardButtonData("⬇️ Download", cb("download")),
				tgbotapi.NewInlineKeyboardButtonData("📄 PDF", cb("pdf")),
			},
		)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ratioKeyboard(st studio.State) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range poster.AspectRatios() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			checked(o.Name, o.Key == string(st.Settings.AspectRatio)), cb("ratio", encodeRatio(o.Key))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cb("menu", menuMain))},
	)
}

func themeKeyboard(st studio.State) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range poster.Themes() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			checked(o.Name, o.Key == string(st.Theme)), cb("theme", o.Key)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cb("menu", menuMain))},
	)
}

// cb builds callback data of the form "vc:<action>[:<arg>...]".
func cb(parts ...string) string {
	return panelCallbackPrefix + ":" + strings.Join(parts, ":")
}

func parseCallback(data string) (string, []string, bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) < 2 || parts[0] != panelCallbackPrefix || parts[1] == "" {
		return "", nil, false
	}
	return parts[1], parts[2:], true
}

// Aspect ratios contain the callback separator, so they travel as "9x16".
func encodeRatio(ar string) string { return strings.ReplaceAll(ar, ":", "x") }
func decodeRatio(v string) string  { return strings.ReplaceAll(v, "x", ":") }

func firstArg(args []string, fallback string) string {
	if len(args) == 0 || args[0] == "" {
		return fallback
	}
	return args[0]
}

func modeName(mode poster.PromptMode) string {
	for _, o := range poster.PromptModes() {
		if o.Key == string(mode) {
			return o.Name
		}
	}
	return string(mode)
}

func checked(label string, on bool) string {
	if on {
		return "✅ " + label
	}
	return label
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
