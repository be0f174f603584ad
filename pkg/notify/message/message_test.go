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

package message

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testMessage() *Message {
	m := New(StatusSuccess, "Build <b>ok</b>")
	m.Body = "commit: fix & ship"
	m.Timestamp = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	m.AddLink("Diff", "https://example.com/diff.html").AddLink("Skipped", "")
	return m
}

func TestPlainText(t *testing.T) {
	out := testMessage().PlainText()
	require.Contains(t, out, "Build <b>ok</b>\n")
	require.Contains(t, out, "commit: fix & ship")
	require.Contains(t, out, "Diff: https://example.com/diff.html")
	require.NotContains(t, out, "Skipped")
	require.NotContains(t, out, "✅")
}

func TestMarkdown(t *testing.T) {
	out := testMessage().Markdown()
	require.Contains(t, out, "✅ *Build <b>ok</b>*")
	require.Contains(t, out, "[Diff](https://example.com/diff.html)")

	m := New(StatusFailure, "Broken")
	require.Contains(t, m.Markdown(), "❌ *Broken*")
}

func TestMarkdownEscapes(t *testing.T) {
	m := New(StatusWarning, "[webapp] Build 0123456 finished with warnings")
	m.Body = "Branch: feature_login\nCommit: 0123456 fix *nav* `css` (Jane)"
	m.Timestamp = time.Date(2026, time.October, 19, 12, 55, 38, 0, time.UTC)
	m.AddLink("Test_report", "https://example.com/report_1/index.html")
	out := m.Markdown()

	require.Contains(t, out, `⚠️ *\[webapp] Build 0123456 finished with warnings*`)
	require.Contains(t, out, `Branch: feature\_login`)
	require.Contains(t, out, "fix \\*nav\\* \\`css\\`")
	require.Contains(t, out, `[Test\_report](https://example.com/report_1/index.html)`)
	require.Contains(t, out, "_2026-10-19T12:55:38Z_")

	// Outside the link target every entity marker is escaped or paired
	text := strings.ReplaceAll(out, "(https://example.com/report_1/index.html)", "")
	text = strings.ReplaceAll(text, `\_`, "")
	require.Equal(t, 2, strings.Count(text, "_"))
}

func TestHTMLEscapes(t *testing.T) {
	out := testMessage().HTML()
	require.Contains(t, out, "Build &lt;b&gt;ok&lt;/b&gt;")
	require.Contains(t, out, "commit: fix &amp; ship")
	require.Contains(t, out, `<a href="https://example.com/diff.html">Diff</a>`)
	require.NotContains(t, out, "<b>ok</b>")

	m := New(StatusInfo, "x")
	m.AddLink("evil", "javascript:alert(1)")
	require.NotContains(t, m.HTML(), "javascript:alert")
}

func TestStatusEmoji(t *testing.T) {
	for _, tc := range []struct {
		status Status
		expect string
	}{
		{StatusSuccess, "✅"},
		{StatusFailure, "❌"},
		{StatusWarning, "⚠️"},
		{StatusInfo, "ℹ️"},
		{Status("other"), "ℹ️"},
	} {
		require.Equal(t, tc.expect, tc.status.Emoji())
	}
}
