package domain

import (
	"errors"
	"time"
)

var (
	MessageSuccessRegister    = "user registered successfully"
	MessageSuccessLogin       = "login success"
	MessageSuccessGetProfile  = "success get profile"
	MessageSuccessGetUsers    = "success get users"
	MessageSuccessSendVerify  = "verification email sent"
	MessageSuccessVerifyEmail = "email verified successfully"

	MessageFailedRegister    = "failed to register user"
	MessageFailedLogin       = "failed to login"
	MessageFailedGetProfile  = "failed to get profile"
	MessageFailedGetUsers    = "failed to get users"
	MessageFailedSendVerify  = "failed to send verification email"
	MessageFailedVerifyEmail = "failed to verify email"

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWrongCredentials   = errors.New("wrong email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
)

type (
	RegisterRequest struct {
		Email     string `json:"email" validate:"required,email"`
		Username  string `json:"username" validate:"required,min=3,max=150"`
		FirstName string `json:"first_name" validate:"required,max=150"`
		LastName  string `json:"last_name" validate:"required,max=150"`
		Password  string `json:"password" validate:"required,min=8"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}

	SendVerifyRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	UserResponse struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}

	ProfileResponse struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Username  string    `json:"username"`
		FirstName string    `json:"first_name"`
		LastName  string    `json:"last_name"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
	}
)
