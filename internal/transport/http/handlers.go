package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

type createGameRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

type createGameResponse struct {
	Code      string             `json:"code"`
	HostToken string             `json:"hostToken"`
	JoinURL   string             `json:"joinUrl"`
	State     domain.GameSession `json:"state"`
}

type joinRequest struct {
	Name   string `json:"name" binding:"required"`
	Avatar string `json:"avatar"`
}

type advanceRequest struct {
	FromIndex *int `json:"fromIndex" binding:"omitempty,gte=0"`
}

type answerRequest struct {
	PlayerID      string             `json:"playerId" binding:"required"`
	Answer        domain.AnswerValue `json:"answer"`
	QuestionIndex *int               `json:"questionIndex" binding:"omitempty,gte=0"`
}

type answerResponse struct {
	domain.AnswerRecord
	AlreadyAnswered bool `json:"alreadyAnswered"`
}

type pollResponse struct {
	State   domain.GameSession `json:"state"`
	Changed bool               `json:"changed"`
}

func (s *Server) createGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := s.service.CreateGame(c.Request.Context(), req.QuizID)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := s.tokens.Issue(session.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createGameResponse{
		Code:      session.Code,
		HostToken: token,
		JoinURL:   s.joinURL(c.Request, session.Code),
		State:     session,
	})
}

func (s *Server) joinGame(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	player, created, err := s.service.JoinGame(c.Request.Context(), c.Param("code"), req.Name, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, player)
}

func (s *Server) listPlayers(c *gin.Context) {
	players, err := s.service.ListPlayers(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}

func (s *Server) kickPlayer(c *gin.Context) {
	if err := s.service.KickPlayer(c.Request.Context(), c.Param("code"), c.Param("playerId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) leaveGame(c *gin.Context) {
	if err := s.service.LeaveGame(c.Request.Context(), c.Param("code"), c.Param("playerId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resume(c *gin.Context) {
	snap, err := s.service.Resume(c.Request.Context(), c.Param("code"), c.Param("playerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) startGame(c *gin.Context) {
	session, err := s.service.StartGame(c.Request.Context(), c.Param("code"))
	s.respondSession(c, session, err)
}

func (s *Server) revealQuestion(c *gin.Context) {
	session, err := s.service.RevealQuestion(c.Request.Context(), c.Param("code"))
	s.respondSession(c, session, err)
}

// advanceQuestion accepts an optional {"fromIndex": n}. With it the call is
// a no-op once the game has moved past question n, so a host can retry it.
func (s *Server) advanceQuestion(c *gin.Context) {
	var req advanceRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	var (
		session domain.GameSession
		err     error
	)
	if req.FromIndex != nil {
		session, err = s.service.AdvanceFrom(c.Request.Context(), c.Param("code"), *req.FromIndex)
	} else {
		session, err = s.service.AdvanceQuestion(c.Request.Context(), c.Param("code"))
	}
	s.respondSession(c, session, err)
}

func (s *Server) endGame(c *gin.Context) {
	session, err := s.service.EndGame(c.Request.Context(), c.Param("code"))
	s.respondSession(c, session, err)
}

func (s *Server) deleteGame(c *gin.Context) {
	if err := s.service.DeleteGame(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pollState(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badRequest(c, errors.New("since must be a non-negative version"))
			return
		}
		since = v
	}
	session, changed, err := s.service.PollState(c.Request.Context(), c.Param("code"), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pollResponse{State: session, Changed: changed})
}

func (s *Server) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Answer.IsZero() {
		respondError(c, domain.ErrInvalidAnswer)
		return
	}
	record, err := s.service.SubmitAnswer(c.Request.Context(), c.Param("code"), req.PlayerID, domain.AnswerSubmission{
		Answer:        req.Answer,
		QuestionIndex: req.QuestionIndex,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyAnswered):
		c.JSON(http.StatusOK, answerResponse{AnswerRecord: record, AlreadyAnswered: true})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusCreated, answerResponse{AnswerRecord: record})
	}
}

func (s *Server) leaderboard(c *gin.Context) {
	lb, err := s.service.GetLeaderboard(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (s *Server) respondSession(c *gin.Context, session domain.GameSession, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.log.WithFields(logrus.Fields{"code": c.Param("code"), "route": c.FullPath()}).WithError(err).Info("host action rejected")
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
