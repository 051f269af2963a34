package server

import (
	"strconv"
	"time"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 30 * time.Second

// Signup handles POST /api/auth/signup
// @Summary Citizen signup
// @Description Register a new citizen account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,full_name=string,phone=string} true "Signup request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.accounts.Signup(c.UserContext(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		return respond(c, err)
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respond(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respond(c, err)
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respond(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	session, ok := c.Locals("session").(*middleware.SessionClaims)
	if ok && session.JTI != "" && s.redis != nil {
		ttl := time.Until(session.ExpiresAt)
		if ttl > 0 {
			if err := s.redis.Set(c.UserContext(), "blacklist:"+session.JTI, "1", ttl).Err(); err != nil {
				return respond(c, models.NewInternalError(err))
			}
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
// @Summary Current session
// @Description Return the caller's user id, role and profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user_id=int,role=string,profile=models.Profile}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	userID := currentUserID(c)
	profile, err := s.accounts.Me(c.UserContext(), userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"role":    profile.Role,
		"profile": profile,
	})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary WebSocket ticket
// @Description Issue a single-use ticket for the notification WebSocket
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: "REALTIME_UNAVAILABLE", Message: "Realtime notifications are unavailable"})
	}
	ticket := uuid.NewString()
	userID := strconv.FormatUint(uint64(currentUserID(c)), 10)
	if err := s.redis.Set(c.UserContext(), wsTicketPrefix+ticket, userID, wsTicketTTL).Err(); err != nil {
		return respond(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}
