package core

import (
	"regexp"
	"strconv"
	"strings"
)

type cmdKind int

const (
	cmdMe cmdKind = iota
	cmdMsg
	cmdPoll
	cmdCreate
	cmdDeleteRoom
	cmdJoinRoom
	cmdLeaveRoom
	cmdKick
	cmdBan
	cmdUnban
	cmdChangepass
	cmdGive
	cmdDuel
	cmdAccept
	cmdDecline
	cmdRob
	cmdCoins
	cmdHelp
)

// slashCommand is a parsed, shape-validated command. Range and permission
// checks happen in the handlers.
type slashCommand struct {
	kind     cmdKind
	name     string
	target   string
	amount   int64
	percent  int
	text     string
	question string
	options  []string
	room     string
	code     string
}

var (
	roomNameRe = regexp.MustCompile(`^[a-z0-9_-]{2,20}$`)
	roomCodeRe = regexp.MustCompile(`^[0-9]{1,9}$`)
	pollRe     = regexp.MustCompile(`^"([^"]+)"\s+(.+)$`)
)

const (
	maxPollQuestionLen = 200
	maxPollOptionLen   = 50
	maxPollOptions     = 8
)

// parseCommand parses a /-prefixed input. Returns (cmd, "") on success and
// (nil, usage) when a known command has malformed arguments. Unknown
// commands return (nil, "") and fall through to plain chat.
func parseCommand(raw string) (*slashCommand, string) {
	trimmed := strings.TrimSpace(raw)
	name, rest, _ := strings.Cut(trimmed, " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	switch name {
	case "/me":
		if rest == "" {
			return nil, "Usage: /me action"
		}
		return &slashCommand{kind: cmdMe, name: "me", text: rest}, ""

	case "/msg":
		target, text, ok := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !ok || target == "" || text == "" {
			return nil, "Usage: /msg username message"
		}
		return &slashCommand{kind: cmdMsg, name: "msg", target: stripMention(target), text: text}, ""

	case "/poll":
		m := pollRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, `Usage: /poll "Question?" Option1 Option2 ...`
		}
		question := truncateRunes(m[1], maxPollQuestionLen)
		fields := strings.Fields(m[2])
		options := make([]string, 0, maxPollOptions)
		for _, f := range fields {
			options = append(options, truncateRunes(f, maxPollOptionLen))
			if len(options) == maxPollOptions {
				break
			}
		}
		if len(options) < 2 {
			return nil, "Poll requires at least 2 options."
		}
		return &slashCommand{kind: cmdPoll, name: "poll", question: question, options: options}, ""

	case "/create":
		parts := strings.Fields(rest)
		if len(parts) != 2 {
			return nil, "Usage: /create roomname code"
		}
		room := strings.ToLower(parts[0])
		if !roomNameRe.MatchString(room) {
			return nil, "Room name must be 2-20 characters: lowercase letters, digits, - or _."
		}
		if !roomCodeRe.MatchString(parts[1]) {
			return nil, "Room code must be 1-9 digits."
		}
		return &slashCommand{kind: cmdCreate, name: "create", room: room, code: parts[1]}, ""

	case "/deleteroom":
		if rest == "" {
			return nil, "Usage: /deleteroom roomname"
		}
		return &slashCommand{kind: cmdDeleteRoom, name: "deleteroom", room: strings.ToLower(rest)}, ""

	case "/joinroom":
		if rest == "" {
			return nil, "Usage: /joinroom roomname"
		}
		return &slashCommand{kind: cmdJoinRoom, name: "joinroom", room: strings.ToLower(rest)}, ""

	case "/leaveroom":
		return &slashCommand{kind: cmdLeaveRoom, name: "leaveroom"}, ""

	case "/kick":
		if rest == "" {
			return nil, "Usage: /kick username"
		}
		return &slashCommand{kind: cmdKick, name: "kick", target: stripMention(rest)}, ""

	case "/ban":
		if rest == "" {
			return nil, "Usage: /ban username"
		}
		return &slashCommand{kind: cmdBan, name: "ban", target: stripMention(rest)}, ""

	case "/unban":
		if rest == "" {
			return nil, "Usage: /unban username"
		}
		return &slashCommand{kind: cmdUnban, name: "unban", target: stripMention(rest)}, ""

	case "/changepass":
		if !roomCodeRe.MatchString(rest) {
			return nil, "Usage: /changepass newcode (1-9 digits)"
		}
		return &slashCommand{kind: cmdChangepass, name: "changepass", code: rest}, ""

	case "/give":
		target, amount, usage := parseTargetAmount(rest, "Usage: /give username amount")
		if usage != "" {
			return nil, usage
		}
		return &slashCommand{kind: cmdGive, name: "give", target: target, amount: amount}, ""

	case "/duel":
		target, amount, usage := parseTargetAmount(rest, "Usage: /duel username amount")
		if usage != "" {
			return nil, usage
		}
		return &slashCommand{kind: cmdDuel, name: "duel", target: target, amount: amount}, ""

	case "/accept":
		return &slashCommand{kind: cmdAccept, name: "accept"}, ""

	case "/decline":
		return &slashCommand{kind: cmdDecline, name: "decline"}, ""

	case "/rob":
		parts := strings.Fields(rest)
		if len(parts) != 2 {
			return nil, "Usage: /rob username percent"
		}
		pct, err := strconv.Atoi(parts[1])
		if err != nil || pct < 1 || pct > 100 {
			return nil, "Percent must be between 1 and 100."
		}
		return &slashCommand{kind: cmdRob, name: "rob", target: stripMention(parts[0]), percent: pct}, ""

	case "/coins":
		target, amount, usage := parseTargetAmount(rest, "Usage: /coins username amount")
		if usage != "" {
			return nil, usage
		}
		return &slashCommand{kind: cmdCoins, name: "coins", target: target, amount: amount}, ""

	case "/help":
		return &slashCommand{kind: cmdHelp, name: "help"}, ""
	}

	return nil, ""
}

func parseTargetAmount(rest, usage string) (string, int64, string) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return "", 0, usage
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, usage
	}
	return stripMention(parts[0]), amount, ""
}

// stripMention drops a leading @ so "/give @bob 5" works.
func stripMention(name string) string {
	return strings.TrimPrefix(name, "@")
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
