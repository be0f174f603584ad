/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"sigs.k8s.io/ccanywhere/pkg/config"
	"sigs.k8s.io/ccanywhere/pkg/notify/message"
)

const (
	telegramAPIURL = "https://api.telegram.org"
	// Telegram rejects messages longer than this
	telegramMaxText = 4096
)

type Telegram struct {
	BotToken string
	ChatID   string
	APIURL   string
	client   *http.Client
}

func NewTelegram(conf *config.Telegram) (*Telegram, error) {
	if conf.BotToken == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if conf.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	api := conf.APIURL
	if api == "" {
		api = telegramAPIURL
	}
	return &Telegram{
		BotToken: conf.BotToken,
		ChatID:   conf.ChatID,
		APIURL:   strings.TrimSuffix(api, "/"),
		client:   newHTTPClient(),
	}, nil
}

// Send posts the markdown rendering through the bot API sendMessage call
func (tg *Telegram) Send(ctx context.Context, msg *message.Message) error {
	text := telegramText(msg)
	payload := map[string]any{
		"chat_id":                  tg.ChatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	res := struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}{}
	url := fmt.Sprintf("%s/bot%s/sendMessage", tg.APIURL, tg.BotToken)
	if err := postJSON(ctx, tg.client, url, payload, &res); err != nil {
		// Don't leak the token in the error text
		return errors.New(strings.ReplaceAll(err.Error(), tg.BotToken, "<token>"))
	}
	if !res.OK {
		return fmt.Errorf("telegram api error: %s", res.Description)
	}
	return nil
}

// telegramText renders msg within the message size limit, counted in
// characters. The body is shortened first so the markup stays balanced.
func telegramText(msg *message.Message) string {
	text := msg.Markdown()
	over := utf8.RuneCountInString(text) - telegramMaxText
	if over <= 0 {
		return text
	}
	if keep := utf8.RuneCountInString(msg.Body) - over - 3; keep > 0 {
		short := *msg
		short.Body = truncateRunes(msg.Body, keep) + "..."
		if text = short.Markdown(); utf8.RuneCountInString(text) <= telegramMaxText {
			return text
		}
	}
	return truncateRunes(text, telegramMaxText-3) + "..."
}

// truncateRunes returns the first n characters of s
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
