package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/city-env-alerts/internal/chat"
	"github.com/i474232898/city-env-alerts/internal/llm"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

type chatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	AISource string `json:"aiSource,omitempty"`
	Error    string `json:"error,omitempty"`
}

type chatHistory struct {
	Turns []chat.Turn `validate:"dive"`
}

func chatFailure(c *fiber.Ctx, status int, msg string, source chat.Source) error {
	return c.Status(status).JSON(chatResponse{Success: false, Error: msg, AISource: string(source)})
}

func chatHandler(responder Responder, maxUpload int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		message := strings.TrimSpace(c.FormValue("message"))
		if message == "" {
			return chatFailure(c, fiber.StatusBadRequest, "message is required", "")
		}

		var history chatHistory
		if raw := c.FormValue("conversationHistory"); strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &history.Turns); err != nil {
				return chatFailure(c, fiber.StatusBadRequest, "conversationHistory must be a JSON array of {role, text}", "")
			}
			if err := validate.Struct(history); err != nil {
				return chatFailure(c, fiber.StatusBadRequest, "conversationHistory roles must be user or assistant", "")
			}
		}

		var user profile.UserContext
		if raw := c.FormValue("userData"); strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &user); err != nil {
				return chatFailure(c, fiber.StatusBadRequest, "userData must be a JSON object", "")
			}
		}

		q := chat.Query{Message: message, History: history.Turns, User: user}

		if fh, err := c.FormFile("file"); err == nil {
			att, status, err := readAttachment(fh, maxUpload)
			if err != nil {
				return chatFailure(c, status, err.Error(), "")
			}
			q.Attachment = att
		}

		reply, err := responder.Respond(c.UserContext(), q)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				return chatFailure(c, fiber.StatusBadRequest, "message is required", "")
			}

			var failure *chat.FailureError
			if errors.As(err, &failure) {
				log.Error().
					Err(err).
					Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
					Str("source", string(failure.LastAttempted)).
					Msg("chat failed on both backends")
				return chatFailure(c, fiber.StatusInternalServerError,
					"the assistant is unavailable right now, please try again shortly", failure.LastAttempted)
			}
			return err
		}

		return c.JSON(chatResponse{Success: true, Response: reply.Text, AISource: string(reply.Source)})
	}
}

var errUploadTooLarge = errors.New("uploaded file is too large")

func readAttachment(fh *multipart.FileHeader, maxUpload int64) (*llm.Attachment, int, error) {
	if maxUpload > 0 && fh.Size > maxUpload {
		return nil, fiber.StatusRequestEntityTooLarge, errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fiber.StatusBadRequest, errors.New("could not read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.StatusBadRequest, errors.New("could not read uploaded file")
	}

	mimeType := fh.Header.Get(fiber.HeaderContentType)
	if mimeType == "" || mimeType == fiber.MIMEOctetStream {
		mimeType = http.DetectContentType(data)
	}

	return &llm.Attachment{Filename: fh.Filename, MIMEType: mimeType, Data: data}, 0, nil
}
