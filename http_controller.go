package gymgate

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// Fiber locals keys shared with the session middleware.
const (
	PrincipalLocalsKey = "principal"
	SessionLocalsKey   = "session"
)

// Long poll tuning for the status endpoint.
var (
	StatusWaitTimeout  = 25 * time.Second
	StatusWaitInterval = time.Second
)

type AuthControllerRoutes struct {
	Signup     string
	Login      string
	Logout     string
	Me         string
	Status     string
	Gyms       string
	Principals string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       Authenticator
	Cookies      *SessionCookies
	ActivitySink ActivitySink
	Routes       *AuthControllerRoutes

	DefaultPhoneRegion string
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:             defLogger{},
		ActivitySink:       noopActivitySink{},
		DefaultPhoneRegion: "US",
		Routes: &AuthControllerRoutes{
			Signup:     "/api/auth/signup",
			Login:      "/api/auth/login",
			Logout:     "/api/auth/logout",
			Me:         "/api/auth/me",
			Status:     "/api/auth/status",
			Gyms:       "/api/gyms",
			Principals: "/api/principals",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Cookies == nil {
		panic("Missing SessionCookies in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerCookies(cookies *SessionCookies) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Cookies = cookies
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ActivitySink = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the public auth endpoints and, behind the given
// session middleware, the authenticated ones.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController, protected fiber.Handler) {
	app.Post(controller.Routes.Signup, controller.Signup)
	app.Post(controller.Routes.Login, controller.Login)
	app.Post(controller.Routes.Logout, controller.Logout)

	app.Get(controller.Routes.Gyms, controller.ListGyms)

	app.Get(controller.Routes.Me, protected, controller.Me)
	app.Get(controller.Routes.Status, protected, controller.StatusWait)

	app.Post(controller.Routes.Gyms, protected, controller.CreateGym)
	app.Patch(controller.Routes.Gyms+"/:id/registrations", protected, controller.SetGymRegistrations)
	app.Delete(controller.Routes.Gyms+"/:id", protected, controller.DeleteGym)

	app.Post(controller.Routes.Principals+"/:id/approve", protected, controller.ApprovePrincipal)
	app.Post(controller.Routes.Principals+"/:id/suspend", protected, controller.SuspendPrincipal)
	app.Post(controller.Routes.Principals+"/:id/activate", protected, controller.ActivatePrincipal)
	app.Post(controller.Routes.Principals+"/:id/deactivate", protected, controller.DeactivatePrincipal)
}

// SignupRequest payload
type SignupRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	GymID        string `json:"gym_id"`
	BusinessName string `json:"business_name"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.Required, validation.In(
			string(RoleGymOwner),
			string(RoleMember),
			string(RoleTrainer),
		)),
	}

	role, _ := ParseRole(r.Role)
	if role.RequiresGym() {
		fields = append(fields, validation.Field(&r.GymID, validation.Required, is.UUID))
	}

	if role == RoleGymOwner {
		fields = append(fields, validation.Field(&r.BusinessName, validation.Required, validation.Length(1, 200)))
	}

	return validation.ValidateStruct(&r, fields...)
}

func (a *AuthController) Signup(c *fiber.Ctx) error {
	payload := new(SignupRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	if a.Debug {
		fmt.Println("======= AUTH SIGNUP =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	msg := SignUpMessage{
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Email:        payload.Email,
		Phone:        a.normalizePhone(payload.Phone),
		Password:     payload.Password,
		Role:         Role(payload.Role),
		BusinessName: payload.BusinessName,
	}

	if payload.GymID != "" {
		gymID, err := uuid.Parse(payload.GymID)
		if err != nil {
			return validationError(fmt.Errorf("gym_id: must be a valid UUID"))
		}
		msg.GymID = &gymID
	}

	handler := NewSignUpHandler(a.Repo).
		WithActivitySink(a.ActivitySink).
		WithLogger(a.Logger)

	principal, err := handler.Execute(c.UserContext(), msg)
	if err != nil {
		a.Logger.Error("signup error", "error", err)
		return err
	}

	token, err := a.Auther.TokenFor(principal.Identity())
	if err != nil {
		a.Logger.Error("signup token error", "error", err)
		return err
	}

	a.Cookies.Set(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    principal,
		"message": StatusLoginMessage(principal.Status, principal.Role),
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return ErrInvalidCredentials
	}

	result, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return err
	}

	a.Cookies.Set(c, result.Token)

	return c.JSON(fiber.Map{
		"success": true,
		"token":   result.Token,
		"user":    result.Principal,
		"message": result.Message,
	})
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	a.Cookies.Clear(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out.",
	})
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	principal, err := a.currentPrincipal(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    principal,
	})
}

// StatusWait holds the request open until the principal's status moves away
// from the status the client last saw, or until the wait window closes.
// Replaces client side polling of the profile endpoint.
func (a *AuthController) StatusWait(c *fiber.Ctx) error {
	principal, err := a.currentPrincipal(c)
	if err != nil {
		return err
	}

	current := principal.Status
	if q := c.Query("current"); q != "" {
		if status, ok := ParseStatus(q); ok {
			current = status
		}
	}

	if principal.Status != current {
		return c.JSON(fiber.Map{
			"success": true,
			"status":  principal.Status,
			"changed": true,
		})
	}

	ctx := c.UserContext()
	deadline := time.NewTimer(StatusWaitTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(StatusWaitInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "status wait cancelled")
		case <-deadline.C:
			return c.JSON(fiber.Map{
				"success": true,
				"status":  current,
				"changed": false,
			})
		case <-tick.C:
			fresh, err := a.Repo.Principals().GetByRecordID(ctx, principal.ID)
			if err != nil {
				if repository.IsRecordNotFound(err) {
					return ErrPrincipalNotFound
				}
				return err
			}
			if fresh.Status != current {
				return c.JSON(fiber.Map{
					"success": true,
					"status":  fresh.Status,
					"changed": true,
				})
			}
		}
	}
}

func (a *AuthController) ListGyms(c *fiber.Ctx) error {
	gyms, err := a.Repo.Gyms().ListOpen(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"gyms":    gyms,
	})
}

// CreateGymRequest payload
type CreateGymRequest struct {
	Name                     string `json:"name"`
	Address                  string `json:"address"`
	IsAcceptingRegistrations *bool  `json:"is_accepting_registrations"`
}

// Validate will run validation rules
func (r CreateGymRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.Address, validation.Length(0, 500)),
	)
}

func (a *AuthController) CreateGym(c *fiber.Ctx) error {
	owner, err := a.requireRole(c, RoleGymOwner)
	if err != nil {
		return err
	}

	payload := new(CreateGymRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	handler := NewCreateGymHandler(a.Repo)
	gym, err := handler.Execute(c.UserContext(), CreateGymMessage{
		Name:                     payload.Name,
		Address:                  payload.Address,
		OwnerID:                  owner.ID,
		IsAcceptingRegistrations: payload.IsAcceptingRegistrations,
	})
	if err != nil {
		a.Logger.Error("create gym error", "error", err)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"gym":     gym,
	})
}

// SetGymRegistrationsRequest payload
type SetGymRegistrationsRequest struct {
	Accepting *bool `json:"accepting"`
}

func (a *AuthController) SetGymRegistrations(c *fiber.Ctx) error {
	owner, err := a.requireRole(c, RoleGymOwner)
	if err != nil {
		return err
	}

	gymID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrGymNotFound
	}

	payload := new(SetGymRegistrationsRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if payload.Accepting == nil {
		return validationError(fmt.Errorf("accepting: cannot be blank"))
	}

	gym, err := a.Repo.Gyms().GetByRecordID(c.UserContext(), gymID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrGymNotFound
		}
		return err
	}

	if gym.OwnerID != owner.ID {
		return ErrForbiddenRole.WithMetadata(map[string]any{
			"gym_id": gym.ID.String(),
		})
	}

	updated, err := a.Repo.Gyms().SetAcceptingRegistrations(c.UserContext(), gym.ID, *payload.Accepting)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"gym":     updated,
	})
}

func (a *AuthController) DeleteGym(c *fiber.Ctx) error {
	owner, err := a.requireRole(c, RoleGymOwner)
	if err != nil {
		return err
	}

	gymID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrGymNotFound
	}

	gym, err := a.Repo.Gyms().GetByRecordID(c.UserContext(), gymID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrGymNotFound
		}
		return err
	}

	if gym.OwnerID != owner.ID {
		return ErrForbiddenRole.WithMetadata(map[string]any{
			"gym_id": gym.ID.String(),
		})
	}

	if err := a.Repo.Gyms().SoftDelete(c.UserContext(), gym.ID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gym deleted.",
	})
}

func (a *AuthController) ApprovePrincipal(c *fiber.Ctx) error {
	return a.transitionPrincipal(c, func(actor ActorRef, target *Principal, opts ...TransitionOption) (*Principal, error) {
		return a.Repo.Principals().Approve(c.UserContext(), actor, target, opts...)
	})
}

func (a *AuthController) SuspendPrincipal(c *fiber.Ctx) error {
	return a.transitionPrincipal(c, func(actor ActorRef, target *Principal, opts ...TransitionOption) (*Principal, error) {
		return a.Repo.Principals().Suspend(c.UserContext(), actor, target, opts...)
	})
}

func (a *AuthController) ActivatePrincipal(c *fiber.Ctx) error {
	return a.transitionPrincipal(c, func(actor ActorRef, target *Principal, opts ...TransitionOption) (*Principal, error) {
		return a.Repo.Principals().Reinstate(c.UserContext(), actor, target, opts...)
	})
}

func (a *AuthController) DeactivatePrincipal(c *fiber.Ctx) error {
	return a.transitionPrincipal(c, func(actor ActorRef, target *Principal, opts ...TransitionOption) (*Principal, error) {
		return a.Repo.Principals().Deactivate(c.UserContext(), actor, target, opts...)
	})
}

// TransitionRequest payload
type TransitionRequest struct {
	Reason string `json:"reason"`
}

func (a *AuthController) transitionPrincipal(c *fiber.Ctx, apply func(ActorRef, *Principal, ...TransitionOption) (*Principal, error)) error {
	owner, err := a.requireRole(c, RoleGymOwner)
	if err != nil {
		return err
	}

	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrTargetNotFound
	}

	target, err := a.Repo.Principals().GetByRecordID(c.UserContext(), targetID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrTargetNotFound
		}
		return err
	}

	if err := a.authorizeOwnerOver(c, owner, target); err != nil {
		return err
	}

	payload := new(TransitionRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid request body").
				WithCode(goerrors.CodeBadRequest)
		}
	}

	opts := []TransitionOption{}
	if payload.Reason != "" {
		opts = append(opts, WithTransitionReason(payload.Reason))
	}

	actor := ActorRef{ID: owner.ID.String(), Type: "principal"}

	updated, err := apply(actor, target, opts...)
	if err != nil {
		a.Logger.Error("status transition error", "error", err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    updated,
	})
}

// authorizeOwnerOver enforces that the acting owner runs the gym the target
// belongs to.
func (a *AuthController) authorizeOwnerOver(c *fiber.Ctx, owner, target *Principal) error {
	if target.GymID == nil {
		return ErrForbiddenRole.WithMetadata(map[string]any{
			"reason": "target is not attached to a gym",
		})
	}

	gym, err := a.Repo.Gyms().GetByRecordID(c.UserContext(), *target.GymID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrGymNotFound
		}
		return err
	}

	if gym.OwnerID != owner.ID {
		return ErrForbiddenRole.WithMetadata(map[string]any{
			"gym_id": gym.ID.String(),
		})
	}

	return nil
}

func (a *AuthController) currentPrincipal(c *fiber.Ctx) (*Principal, error) {
	principal, ok := c.Locals(PrincipalLocalsKey).(*Principal)
	if !ok || principal == nil {
		return nil, ErrMissingToken
	}
	return principal, nil
}

func (a *AuthController) requireRole(c *fiber.Ctx, role Role) (*Principal, error) {
	principal, err := a.currentPrincipal(c)
	if err != nil {
		return nil, err
	}

	if principal.Role != role {
		return nil, ErrForbiddenRole.WithMetadata(map[string]any{
			"required": string(role),
			"role":     string(principal.Role),
		})
	}

	return principal, nil
}

// normalizePhone formats valid numbers as E.164 and leaves everything else
// untouched. Phone quality never blocks a signup.
func (a *AuthController) normalizePhone(phone string) string {
	if phone == "" {
		return phone
	}

	parsed, err := phonenumbers.Parse(phone, a.DefaultPhoneRegion)
	if err != nil {
		return phone
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return phone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func validationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode("VALIDATION_ERROR")
}
