package logging

import "log/slog"

// Domain identifiers

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Session(id string) slog.Attr {
	return slog.String("session_id", id)
}

func Role(role string) slog.Attr {
	return slog.String("role", role)
}

func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

func Order(id string) slog.Attr {
	return slog.String("order_id", id)
}

func Message(id string) slog.Attr {
	return slog.String("message_id", id)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
