package core

import (
	"fmt"
	"strings"

	"github.com/clinkchat/clinkchat-server/internal/store"
)

func pollView(p *store.Poll) *PollView {
	return &PollView{
		ID:        p.ID,
		Room:      p.Room,
		Question:  p.Question,
		Options:   p.Options,
		Votes:     p.Votes,
		EndsAt:    p.EndsAt,
		Concluded: p.Concluded,
	}
}

func (h *Hub) handlePoll(c *Client, cmd *slashCommand) {
	poll := &store.Poll{
		Room:     c.Room,
		Question: cmd.question,
		Options:  cmd.options,
		Votes:    map[string]string{},
		Creator:  c.Username,
		EndsAt:   h.now().Add(h.cfg.Chat.PollDuration),
	}
	if err := h.st.CreatePoll(h.ctx, poll); err != nil {
		h.sendError(c, ErrCodeStore, "Could not create poll.")
		return
	}

	h.metrics.MessageProcessed("poll")
	h.broadcastRoom(c.Room, &Event{Kind: EventPollUpdate, Room: c.Room, Poll: pollView(poll)})
	h.broadcastSystem(c.Room, fmt.Sprintf("%s started a poll: %q, voting closes in %d minutes",
		c.Username, cmd.question, int(h.cfg.Chat.PollDuration.Minutes())))
}

// PollVote records or replaces the client's vote. Votes on concluded polls
// or unknown options are silently dropped.
func (h *Hub) PollVote(c *Client, pollID int64, option string) {
	if !h.registered(c) {
		return
	}

	poll, err := h.st.GetPoll(h.ctx, pollID)
	if err != nil {
		return
	}
	if poll.Room != c.Room || poll.Concluded {
		return
	}
	valid := false
	for _, o := range poll.Options {
		if o == option {
			valid = true
			break
		}
	}
	if !valid {
		return
	}

	// One vote per identity; re-voting overwrites.
	if poll.Votes == nil {
		poll.Votes = map[string]string{}
	}
	poll.Votes[c.Username] = option
	if err := h.st.SetVotes(h.ctx, pollID, poll.Votes); err != nil {
		h.log.Warn().Err(err).Int64("poll", pollID).Msg("failed to save vote")
		return
	}

	h.broadcastRoom(c.Room, &Event{Kind: EventPollUpdate, Room: c.Room, Poll: pollView(poll)})
}

// concludeDuePolls tallies and closes every expired poll. The conditional
// conclude makes each poll report exactly once even if sweeps overlap.
func (h *Hub) concludeDuePolls() {
	due, err := h.st.ListDuePolls(h.ctx, h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list due polls")
		return
	}

	for _, poll := range due {
		won, err := h.st.ConcludePoll(h.ctx, poll.ID)
		if err != nil {
			h.log.Error().Err(err).Int64("poll", poll.ID).Msg("failed to conclude poll")
			continue
		}
		if !won {
			continue
		}

		msg := pollResultLine(poll)
		poll.Concluded = true
		h.metrics.PollConcluded()
		h.broadcastRoom(poll.Room, &Event{Kind: EventPollConcluded, Room: poll.Room, Poll: pollView(poll), Text: msg})
		h.broadcastSystem(poll.Room, "🏆 "+msg)
	}
}

// pollResultLine tallies votes and formats the outcome, listing all tied
// options explicitly.
func pollResultLine(poll *store.Poll) string {
	tally := make(map[string]int, len(poll.Options))
	for _, o := range poll.Options {
		tally[o] = 0
	}
	total := 0
	for _, choice := range poll.Votes {
		if _, ok := tally[choice]; ok {
			tally[choice]++
			total++
		}
	}

	if total == 0 {
		return fmt.Sprintf("Poll %q ended with no votes.", poll.Question)
	}

	topCount := 0
	for _, count := range tally {
		if count > topCount {
			topCount = count
		}
	}
	var tied []string
	for _, o := range poll.Options {
		if tally[o] == topCount {
			tied = append(tied, fmt.Sprintf("%q", o))
		}
	}

	if len(tied) > 1 {
		return fmt.Sprintf("Poll %q ended in a tie between: %s (%d %s each)",
			poll.Question, strings.Join(tied, ", "), topCount, plural(topCount, "vote"))
	}
	return fmt.Sprintf("Poll %q winner: %s with %d %s out of %d",
		poll.Question, tied[0], topCount, plural(topCount, "vote"), total)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
