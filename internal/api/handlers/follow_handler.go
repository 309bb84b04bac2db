package handlers

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/internal/api/presenters"
	"Foodgram-Backend/pkg/follow"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type (
	FollowHandler interface {
		Subscribe(c *fiber.Ctx) error
		Unsubscribe(c *fiber.Ctx) error
		GetSubscriptions(c *fiber.Ctx) error
	}

	followHandler struct {
		followService follow.FollowService
	}
)

func NewFollowHandler(followService follow.FollowService) FollowHandler {
	return &followHandler{followService: followService}
}

func (h *followHandler) Subscribe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	targetID := c.Params("id")

	res, err := h.followService.Follow(c.Context(), userID, targetID)
	if err != nil {
		return presenters.ErrorResponse(c, presenters.StatusCode(err), domain.MessageFailedFollow, err)
	}

	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessFollow)
}

func (h *followHandler) Unsubscribe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	targetID := c.Params("id")

	if err := h.followService.Unfollow(c.Context(), userID, targetID); err != nil {
		return presenters.ErrorResponse(c, presenters.StatusCode(err), domain.MessageFailedUnfollow, err)
	}

	return presenters.SuccessResponse(c, nil, fiber.StatusNoContent, domain.MessageSuccessUnfollow)
}

func (h *followHandler) GetSubscriptions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// absent or non-numeric recipes_limit means "all recipes"
	recipesLimit := 0
	if raw := c.Query("recipes_limit", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			recipesLimit = parsed
		}
	}

	res, err := h.followService.GetSubscriptions(c.Context(), userID, recipesLimit)
	if err != nil {
		return presenters.ErrorResponse(c, presenters.StatusCode(err), domain.MessageFailedGetSubscriptions, err)
	}

	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetSubscriptions)
}
