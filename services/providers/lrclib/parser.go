package lrclib

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"

	log "github.com/sirupsen/logrus"
)

// lastLineDuration is how long the final line stays on screen, in seconds.
const lastLineDuration = 3.0

// ErrNoUsableLyrics is returned when a transcript has no displayable lines.
var ErrNoUsableLyrics = errors.New("no usable lyrics")

// [mm:ss.xx] or [mm:ss.xxx] followed by the line text
var lrcLineRegex = regexp.MustCompile(`^\[(\d{2}):(\d{2})\.(\d{2,3})\]\s*(.*)$`)

// ParseSynced converts an LRC transcript into line-synced lyrics. Lines that
// do not match the timestamp format or carry no text are skipped. Each line
// ends where the next begins; the last ends three seconds after it starts.
// A transcript without a single timestamp is returned as static lyrics.
func ParseSynced(transcript string) (lyrics.Lyrics, error) {
	var content []lyrics.LineContent
	skipped, timed := 0, 0

	for _, raw := range strings.Split(transcript, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		match := lrcLineRegex.FindStringSubmatch(line)
		if match == nil {
			skipped++
			continue
		}

		timed++
		text := strings.TrimSpace(match[4])
		if text == "" {
			continue
		}

		minutes, _ := strconv.Atoi(match[1])
		seconds, _ := strconv.Atoi(match[2])
		millis, _ := strconv.Atoi(padFraction(match[3]))

		content = append(content, lyrics.LineContent{
			Type: lyrics.ContentVocal,
			TimeMetadata: lyrics.TimeMetadata{
				StartTime: float64(minutes*60+seconds) + float64(millis)/1000,
			},
			Text: text,
		})
	}

	if timed == 0 {
		static, err := ParsePlain(transcript)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
	if skipped > 0 {
		log.Debugf("%s Skipped %d untimed lines", logcolors.LogLRCParser, skipped)
	}
	if len(content) == 0 {
		return nil, ErrNoUsableLyrics
	}

	for i := range content {
		if i < len(content)-1 {
			content[i].EndTime = content[i+1].StartTime
		} else {
			content[i].EndTime = content[i].StartTime + lastLineDuration
		}
	}

	return &lyrics.LineSynced{
		TimeMetadata: lyrics.TimeMetadata{
			StartTime: content[0].StartTime,
			EndTime:   content[len(content)-1].EndTime,
		},
		Content: content,
	}, nil
}

// ParsePlain converts an untimed transcript into static lyrics of its trimmed,
// non-empty lines.
func ParsePlain(transcript string) (*lyrics.Static, error) {
	var lines []lyrics.TextMetadata
	for _, raw := range strings.Split(transcript, "\n") {
		if text := strings.TrimSpace(raw); text != "" {
			lines = append(lines, lyrics.TextMetadata{Text: text})
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoUsableLyrics
	}
	return &lyrics.Static{Lines: lines}, nil
}

// padFraction right-pads a two digit fraction to milliseconds ("50" -> "500").
func padFraction(fraction string) string {
	for len(fraction) < 3 {
		fraction += "0"
	}
	return fraction
}
