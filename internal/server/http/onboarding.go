package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/service"
	"github.com/LyndaLilly/alebaz-chat-api/internal/storage"
)

// maxProfileForm bounds a save-profile body: the image plus form fields.
const maxProfileForm = storage.MaxImageBytes + 1<<20

var emailNotFound = ErrorCase{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "Email not found. Please register again."}

var clientNotFound = ErrorCase{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "Client not found"}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) startEmail(c *gin.Context) {
	var req emailRequest
	if !s.bindJSON(c, "start_email", &req) {
		return
	}
	client, err := s.d.Onboarding.StartEmail(c.Request.Context(), req.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.d.Log.Info("verification code sent",
		zap.String("client_id", client.ID.String()),
		zap.String("email", MaskEmail(client.Email)),
	)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": "Verification code sent to email", "email": client.Email})
}

func (s *Server) verifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !s.bindJSON(c, "verify_email", &req) {
		return
	}
	client, err := s.d.Onboarding.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	switch {
	case errors.Is(err, errs.ErrAlreadyVerified):
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Email already verified.", "email": client.Email})
	case err != nil:
		s.fail(c, err, emailNotFound)
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Email verified successfully.", "email": client.Email})
	}
}

func (s *Server) resendEmail(c *gin.Context) {
	var req emailRequest
	if !s.bindJSON(c, "resend_email", &req) {
		return
	}
	client, err := s.d.Onboarding.ResendEmail(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, errs.ErrAlreadyVerified):
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Email already verified.", "email": client.Email})
	case err != nil:
		s.fail(c, err, emailNotFound, ErrorCase{
			Err:     errs.ErrDeliveryFailed,
			Status:  http.StatusInternalServerError,
			Message: "Failed to resend verification email. Please try again.",
		})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Verification code resent to email", "email": client.Email})
	}
}

// saveProfile accepts multipart/form-data (or a urlencoded form without image).
func (s *Server) saveProfile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProfileForm)

	var image *service.ImageUpload
	fh, err := c.FormFile("profile_image")
	switch {
	case err == nil:
		if fh.Size > storage.MaxImageBytes {
			s.reject(c, http.StatusUnprocessableEntity, "The profile image must not be greater than 2048 kilobytes.", nil)
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.fail(c, err)
			return
		}
		defer f.Close()
		image = &service.ImageUpload{Filename: fh.Filename, Content: f}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(c, http.StatusUnprocessableEntity, "The profile image must not be greater than 2048 kilobytes.", nil)
			return
		}
		s.reject(c, http.StatusBadRequest, "Malformed form body", nil)
		return
	}

	in := service.ProfileInput{Email: c.PostForm("email"), Image: image}
	if u, ok := c.GetPostForm("username"); ok {
		in.Username = &u
	}
	client, err := s.d.Onboarding.SaveProfile(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err, clientNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"message":         "Profile saved",
		"username":        client.Username,
		"profile_image":   client.ProfileImage,
		"onboarding_step": client.OnboardingStep,
	})
}

func (s *Server) savePhonePin(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		CountryCode string `json:"country_code"`
		Phone       string `json:"phone"`
		PIN         string `json:"pin"`
	}
	if !s.bindJSON(c, "save_phone_pin", &req) {
		return
	}
	client, err := s.d.Onboarding.SavePhonePin(c.Request.Context(), service.PhonePinInput{
		Email:       req.Email,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
		PIN:         req.PIN,
	})
	if err != nil {
		s.fail(c, err, clientNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Phone and PIN saved.", "phone": client.Phone})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Phone string `json:"phone"`
		PIN   string `json:"pin"`
	}
	if !s.bindJSON(c, "login", &req) {
		return
	}
	tok, client, err := s.d.Onboarding.LoginWithPin(c.Request.Context(), req.Phone, req.PIN)
	if err != nil {
		s.d.Log.Info("login rejected", zap.String("phone", MaskPhone(req.Phone)), zap.String("kind", errs.Kind(err)))
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Login successful",
		"token":   tok.AccessToken,
		"client":  newClientView(client),
	})
}

func (s *Server) me(c *gin.Context) {
	client, err := s.d.Onboarding.Me(c.Request.Context(), principal(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "client": newClientView(client)})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.d.Onboarding.Logout(c.Request.Context(), principal(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Logged out"})
}

func (s *Server) search(c *gin.Context) {
	kind, results, err := s.d.Search.Search(c.Request.Context(), principal(c), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "query_type": kind, "results": newSearchViews(results)})
}
