// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package apperr

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// genericKey is the catalog key used for codes outside the closed set.
const genericKey = "UNEXPECTED"

var userMessages = map[Code][2]string{ // {ja, en}
	CodeVideoTooShort:       {"動画が短すぎます。1秒以上の動画をアップロードしてください。", "The video is too short. Please upload a video of at least 1 second."},
	CodeVideoTooLong:        {"動画が長すぎます。より短い動画をアップロードしてください。", "The video is too long. Please upload a shorter video."},
	CodeFileTooLarge:        {"ファイルサイズが大きすぎます。30MB以下のファイルを選択してください。", "The file is too large. Please choose a file of 30 MB or less."},
	CodeInvalidFileType:     {"対応していないファイル形式です。MP4、MOV、WebMの動画を選択してください。", "Unsupported file type. Please choose an MP4, MOV or WebM video."},
	CodeInvalidRequest:      {"リクエストが不正です。ファイルを選択し直してください。", "The request was invalid. Please select the file again."},
	CodeVideoDecodeError:    {"動画を読み込めませんでした。ファイルが破損していないか確認してください。", "The video could not be decoded. Please check that the file is not corrupted."},
	CodeNoPoseDetected:      {"人物の姿勢を検出できませんでした。全身が映っている動画をお試しください。", "No pose was detected. Please try a video in which the whole body is visible."},
	CodeModelInferenceError: {"姿勢推定処理中にエラーが発生しました。時間をおいて再度お試しください。", "An error occurred during pose estimation. Please try again later."},
	CodeStorageError:        {"処理結果の保存に失敗しました。時間をおいて再度お試しください。", "Saving the result failed. Please try again later."},
	CodeInternalServerError: {"サーバーでエラーが発生しました。時間をおいて再度お試しください。", "The server encountered an error. Please try again later."},
	CodeNetworkError:        {"サーバーに接続できません。ネットワーク接続を確認してください。", "Cannot reach the server. Please check your network connection."},
	CodeTimeoutError:        {"リクエストがタイムアウトしました。時間をおいて再度お試しください。", "The request timed out. Please try again later."},
	CodeValidationError:     {"入力内容に問題があります。ファイルを確認してください。", "There is a problem with the input. Please check the file."},
	CodeClientError:         {"リクエストを送信できませんでした。ファイルを確認して再度お試しください。", "The request could not be sent. Please check the file and try again."},
	CodeUnknownError:        {"予期しない応答を受信しました。時間をおいて再度お試しください。", "An unexpected response was received. Please try again later."},
}

var genericMessage = [2]string{
	"予期しないエラーが発生しました。時間をおいて再度お試しください。",
	"An unexpected error occurred. Please try again later.",
}

var (
	supported = []language.Tag{language.Japanese, language.English}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Japanese))
	for code, texts := range userMessages {
		mustSet(b, language.Japanese, string(code), texts[0])
		mustSet(b, language.English, string(code), texts[1])
	}
	mustSet(b, language.Japanese, genericKey, genericMessage[0])
	mustSet(b, language.English, genericKey, genericMessage[1])
	return b
}

func mustSet(b *catalog.Builder, tag language.Tag, key, msg string) {
	if err := b.SetString(tag, key, msg); err != nil {
		panic(err)
	}
}

// UserMessage returns the Japanese user-facing text for code.
func UserMessage(code Code) string {
	return LocalizedUserMessage(language.Japanese, code)
}

// LocalizedUserMessage returns the user-facing text for code in the closest
// supported language. Codes outside the closed set yield a generic message.
func LocalizedUserMessage(lang language.Tag, code Code) string {
	p := message.NewPrinter(matchSupported(lang), message.Catalog(messages))

	key := genericKey
	if _, ok := userMessages[code]; ok {
		key = string(code)
	}
	return p.Sprintf(message.Key(key, genericMessage[1]))
}

// ParseLocale resolves a locale string such as "en-US" to a supported tag,
// defaulting to Japanese.
func ParseLocale(s string) language.Tag {
	if s == "" {
		return language.Japanese
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Japanese
	}
	return matchSupported(tag)
}

// matchSupported falls back to Japanese when no supported language is a
// plausible match.
func matchSupported(tag language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}
