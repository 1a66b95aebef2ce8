package orchestrator

import (
	"strings"

	"slotwatch/internal/apperr"
	"slotwatch/internal/portal"
)

type Class string

const (
	ClassSuccess           Class = "success"
	ClassBusinessRateLimit Class = "business_rate_limit"
	ClassTemporaryService  Class = "temporary_service"
	ClassOther             Class = "other"
)

const (
	statusError       = "ERROR"
	quotaPhrase       = "սահմանաչափը սպառված է"
	queueUnavailable  = "Հերթի ծառայությունը ժամանակավորապես անհասանելի է։ Խնդրում ենք փորձել ավելի ուշ"
	genericServerFail = "Server Error"
)

var transientMarkers = []string{"temporary", "unavailable", "service", "server"}

// Classify maps a portal reply or failure to one of four classes.
// It never fails: an unrecognized shape is ClassOther.
func Classify(reply *portal.Reply, err error) Class {
	serialized := ""
	if err != nil {
		reply, serialized = replyFromError(err)
	} else if reply != nil {
		serialized = string(reply.Raw)
	}

	if reply != nil {
		if reply.Status == portal.StatusOK && reply.Day() != "" {
			return ClassSuccess
		}
		if reply.Status == statusError && strings.Contains(reply.Error, quotaPhrase) {
			return ClassBusinessRateLimit
		}
		if reply.Error == queueUnavailable || reply.Message == genericServerFail {
			return ClassTemporaryService
		}
	}

	lower := strings.ToLower(serialized)
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return ClassTemporaryService
		}
	}
	return ClassOther
}

// KindFor maps a cycle outcome onto the shared error taxonomy. It is "" for a
// success. A portal failure with no HTTP status never reached the server.
func KindFor(class Class, err error) apperr.Kind {
	switch class {
	case ClassSuccess:
		return ""
	case ClassBusinessRateLimit:
		return apperr.KindRateLimit
	case ClassTemporaryService:
		return apperr.KindTransient
	}
	if k := apperr.KindOf(err); k != "" {
		return k
	}
	if pe, ok := portal.AsError(err); ok && pe.StatusCode == 0 && pe.Err != nil {
		return apperr.KindTransport
	}
	return apperr.KindUnclassified
}

// replyFromError digs out the upstream body carried by err, if any, and returns
// the text the transient markers are matched against.
func replyFromError(err error) (*portal.Reply, string) {
	if pe, ok := portal.AsError(err); ok && len(pe.Body) > 0 {
		return pe.Reply, string(pe.Body)
	}
	if payload := apperr.PayloadOf(err); payload != "" {
		r, perr := portal.ParseReply([]byte(payload))
		if perr != nil {
			r = nil
		}
		return r, payload
	}
	return nil, err.Error()
}
