package http

import (
	"encoding/json"

	"github.com/clinkchat/clinkchat-server/internal/core"
	"github.com/clinkchat/clinkchat-server/internal/proto"
)

// inboundToAction translates a wire message into a closure that runs on the
// hub goroutine. Returns a protocol error for malformed payloads and a nil
// action for message types the read loop handles itself.
func inboundToAction(hub *core.Hub, client *core.Client, inbound proto.Inbound) (func(), *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeSwitchRoom:
		var data proto.SwitchRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		if data.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "room is required"}
		}
		return func() { hub.SwitchRoom(client, data.Room, data.Code) }, nil

	case proto.InboundTypeChatMessage:
		var data proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.HandleChat(client, data.Text, data.ClientID) }, nil

	case proto.InboundTypePollVote:
		var data proto.PollVoteData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.PollVote(client, data.PollID, data.Option) }, nil

	case proto.InboundTypeTypingStart:
		return func() { hub.TypingStart(client) }, nil

	case proto.InboundTypeTypingStop:
		return func() { hub.TypingStop(client) }, nil

	case proto.InboundTypeActivity:
		return func() { hub.Activity(client) }, nil

	case proto.InboundTypeReact:
		var data proto.ReactData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.React(client, data.MessageID, data.Emoji) }, nil

	case proto.InboundTypeUnreact:
		var data proto.ReactData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.Unreact(client, data.MessageID) }, nil

	case proto.InboundTypeColorUpdate:
		var data proto.ColorUpdateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.ColorUpdate(client, data.Color) }, nil

	case proto.InboundTypeConfirmChangepass:
		var data proto.ConfirmChangepassData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badPayload(inbound.Type)
		}
		return func() { hub.ConfirmChangepass(client, data.Room, data.NewCode) }, nil
	}

	return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
}

func badPayload(msgType string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeValidation, Msg: "malformed " + msgType + " payload"}
}

func messagePayload(m *core.ChatMessage) proto.MessagePayload {
	return proto.MessagePayload{
		ID:        m.ID,
		Room:      m.Room,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Color:     m.Color,
		Kind:      m.Type,
		Text:      m.Text,
		ClientID:  m.ClientID,
		TS:        m.Timestamp.Unix(),
	}
}

func pollPayload(p *core.PollView, result string) proto.PollPayload {
	return proto.PollPayload{
		ID:        p.ID,
		Room:      p.Room,
		Question:  p.Question,
		Options:   p.Options,
		Votes:     p.Votes,
		EndsAt:    p.EndsAt.Unix(),
		Concluded: p.Concluded,
		Result:    result,
	}
}

func event(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

// outboundFromEvent translates a core event into its wire form.
func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventSystem:
		return event(proto.EventSystemMessage, proto.SystemPayload{Room: ev.Room, Text: ev.Text})

	case core.EventChat:
		return event(proto.EventChatMessage, messagePayload(ev.Message))

	case core.EventDM:
		return event(proto.EventDM, messagePayload(ev.Message))

	case core.EventHistory:
		messages := make([]proto.MessagePayload, 0, len(ev.Messages))
		for i := range ev.Messages {
			messages = append(messages, messagePayload(&ev.Messages[i]))
		}
		return event(proto.EventHistory, proto.HistoryPayload{Room: ev.Room, Messages: messages})

	case core.EventRoomsList:
		rooms := make([]proto.RoomInfo, 0, len(ev.Rooms))
		for _, r := range ev.Rooms {
			rooms = append(rooms, proto.RoomInfo{Name: r.Name, IsPrivate: r.IsPrivate, IsOwner: r.IsOwner, OwnerCode: r.OwnerCode})
		}
		return event(proto.EventRoomsList, proto.RoomsListPayload{Rooms: rooms})

	case core.EventUserList:
		users := make([]proto.UserInfo, 0, len(ev.Users))
		for _, u := range ev.Users {
			users = append(users, proto.UserInfo{
				Username: u.Username,
				Color:    u.Color,
				JoinedAt: u.JoinedAt.Unix(),
				Idle:     u.Idle,
			})
		}
		return event(proto.EventUserList, proto.UserListPayload{Room: ev.Room, Users: users})

	case core.EventTyping:
		return event(proto.EventTyping, proto.TypingPayload{Room: ev.Room, Text: ev.Text})

	case core.EventPollUpdate:
		return event(proto.EventPollUpdate, pollPayload(ev.Poll, ""))

	case core.EventPollConcluded:
		return event(proto.EventPollConcluded, pollPayload(ev.Poll, ev.Text))

	case core.EventReactionUpdate:
		return event(proto.EventReactionUpdate, proto.ReactionPayload{
			MessageID: ev.Reaction.MessageID,
			Counts:    ev.Reaction.Counts,
		})

	case core.EventLinkPreview:
		return event(proto.EventLinkPreview, proto.PreviewPayload{
			Room:        ev.Room,
			URL:         ev.Preview.URL,
			Title:       ev.Preview.Title,
			Image:       ev.Preview.Image,
			Description: ev.Preview.Description,
		})

	case core.EventCoinsUpdate:
		return event(proto.EventCoinsUpdate, proto.CoinsPayload{
			Username: ev.Balance.Username,
			Coins:    ev.Balance.Coins,
		})

	case core.EventKicked:
		return event(proto.EventKicked, proto.KickedPayload{Reason: ev.Text})

	case core.EventRoomChanged:
		return event(proto.EventRoomChanged, proto.RoomPayload{Room: ev.Room})

	case core.EventRoomRequiresCode:
		return event(proto.EventRoomRequiresCode, proto.RoomPayload{Room: ev.Room})

	case core.EventKeypadError:
		return event(proto.EventKeypadError, proto.RoomPayload{Room: ev.Room, Text: ev.Text})

	case core.EventRoomCreated:
		return event(proto.EventRoomCreated, proto.RoomCodePayload{Room: ev.Room, Code: ev.Code})

	case core.EventRoomCodeChanged:
		return event(proto.EventRoomCodeChanged, proto.RoomCodePayload{Room: ev.Room, Code: ev.Code})

	case core.EventConfirmChangepass:
		return event(proto.EventConfirmChangepass, proto.RoomCodePayload{Room: ev.Room, Code: ev.Code, Text: ev.Text})

	case core.EventRoomActivity:
		return event(proto.EventRoomActivity, proto.RoomPayload{Room: ev.Room})

	case core.EventError:
		if ev.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message}}
	}

	return proto.Outbound{Type: proto.OutboundTypeEvent}
}
