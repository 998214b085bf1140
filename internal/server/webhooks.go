package server

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskline/internal/channels"
	"taskline/internal/inbound"
)

const maxWebhookBody = 64 << 10

// TwilioWebhookConfig controls signature verification for /webhook/sms.
// Verification is skipped when AuthToken is empty.
type TwilioWebhookConfig struct {
	AuthToken string
	// PublicURL is the externally visible base URL, used to rebuild the
	// signed URL behind a proxy.
	PublicURL string
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// TwiML renders a messaging response with text escaped.
func TwiML(text string) []byte {
	body, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		body = []byte("<Response><Message></Message></Response>")
	}
	return append([]byte(xml.Header[:len(xml.Header)-1]), body...)
}

func registerWebhooks(r chi.Router, cfg Config, logger *zap.Logger) {
	log := logger.Named("webhook")
	r.Post("/webhook/sms", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxWebhookBody)
		if err := req.ParseForm(); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid form body", nil))
			return
		}
		if cfg.Twilio.AuthToken != "" {
			signed := signedURL(req, cfg.Twilio.PublicURL)
			if !channels.ValidTwilioSignature(cfg.Twilio.AuthToken, signed, req.PostForm, req.Header.Get("X-Twilio-Signature")) {
				log.Warn("rejected webhook with bad signature", zap.String("url", signed))
				respondStatusError(w, newAPIError(http.StatusForbidden, "forbidden", "invalid Twilio signature", nil))
				return
			}
		}
		reply := inbound.ApologyReply
		if cfg.Inbound == nil {
			log.Error("no inbound handler configured")
		} else {
			res, err := cfg.Inbound.Handle(req.Context(), inbound.Message{
				Body:       req.PostForm.Get("Body"),
				From:       req.PostForm.Get("From"),
				DeliveryID: req.PostForm.Get("MessageSid"),
				Channel:    "sms",
			})
			switch {
			case err != nil:
				log.Error("inbound sms failed", zap.String("message_sid", req.PostForm.Get("MessageSid")), zap.Error(err))
			case res.Duplicate:
				reply = ""
			default:
				reply = res.Reply
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(TwiML(reply))
	})
}

// signedURL is the URL Twilio signed: PublicURL plus the request URI when
// set, otherwise the request's own URL honoring X-Forwarded-Proto.
func signedURL(req *http.Request, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/") + req.URL.RequestURI()
	}
	scheme := "http"
	if req.TLS != nil || strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}
