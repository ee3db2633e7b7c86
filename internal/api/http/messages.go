package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/sonenae10-blip/todo/internal/apperr"
	authdomain "github.com/sonenae10-blip/todo/internal/auth/domain"
	"github.com/sonenae10-blip/todo/internal/friends"
	tododomain "github.com/sonenae10-blip/todo/internal/todos/domain"
)

// Op names the user action that failed; it picks the fallback message.
type Op string

const (
	OpSignUp         Op = "signup"
	OpProfile        Op = "profile"
	OpLoadTodos      Op = "todos.load"
	OpCreateTodo     Op = "todos.create"
	OpUpdateTodo     Op = "todos.update"
	OpToggleTodo     Op = "todos.toggle"
	OpDeleteTodo     Op = "todos.delete"
	OpLoadFriends    Op = "friends.load"
	OpSendRequest    Op = "friends.request"
	OpAcceptRequest  Op = "friends.accept"
	OpDeclineRequest Op = "friends.decline"
	OpCancelRequest  Op = "friends.cancel"
	OpRemoveFriend   Op = "friends.remove"
)

type message struct {
	ko string
	en string
}

func (m message) in(tag language.Tag) string {
	if tag == language.English {
		return m.en
	}
	return m.ko
}

// Errors with a dedicated message, checked in order.
var specific = []struct {
	err error
	msg message
}{
	{friends.ErrRequestExists, message{"이미 요청이 존재합니다.", "A request already exists."}},
	{friends.ErrAlreadyFriends, message{"이미 친구입니다.", "You are already friends."}},
	{friends.ErrUnknownFriendID, message{"해당 아이디를 찾을 수 없습니다.", "No user with that ID."}},
	{friends.ErrSelfRequest, message{"올바른 친구 아이디를 입력하세요.", "Enter a valid friend ID."}},
	{friends.ErrHandlePending, message{"아이디 생성 중입니다. 잠시 후 다시 시도하세요.", "Your ID is still being created. Try again shortly."}},
	{friends.ErrNotRecipient, message{"받은 요청만 처리할 수 있습니다.", "Only the recipient can answer this request."}},
	{authdomain.ErrWeakPassword, message{"비밀번호 규칙을 확인해주세요.", "Check the password rules."}},
	{authdomain.ErrEmailExists, message{"이미 가입된 이메일입니다.", "This email is already registered."}},
	{authdomain.ErrInvalidEmail, message{"이메일을 확인해주세요.", "Check the email address."}},
	{tododomain.ErrEmptyText, message{"할 일을 입력하세요.", "Enter a todo."}},
	{tododomain.ErrInvalidDate, message{"날짜를 확인해주세요.", "Check the date."}},
	{tododomain.ErrNotOwner, message{"내 일정만 변경할 수 있습니다.", "You can only change your own todos."}},
	{apperr.ErrHandleExhausted, message{"아이디 생성에 실패했습니다.", "Could not create your ID."}},
}

var opMessages = map[Op]message{
	OpSignUp:         {"회원가입에 실패했습니다.", "Sign-up failed."},
	OpProfile:        {"아이디 생성에 실패했습니다.", "Could not create your ID."},
	OpLoadTodos:      {"일정 불러오기에 실패했습니다.", "Failed to load todos."},
	OpCreateTodo:     {"일정 추가에 실패했습니다.", "Failed to add the todo."},
	OpUpdateTodo:     {"일정 수정에 실패했습니다.", "Failed to update the todo."},
	OpToggleTodo:     {"체크 상태 변경에 실패했습니다.", "Failed to change the check state."},
	OpDeleteTodo:     {"일정 삭제에 실패했습니다.", "Failed to delete the todo."},
	OpLoadFriends:    {"친구 목록 불러오기에 실패했습니다.", "Failed to load friends."},
	OpSendRequest:    {"요청 전송에 실패했습니다.", "Failed to send the request."},
	OpAcceptRequest:  {"요청 수락에 실패했습니다.", "Failed to accept the request."},
	OpDeclineRequest: {"요청 거절에 실패했습니다.", "Failed to decline the request."},
	OpCancelRequest:  {"요청 취소에 실패했습니다.", "Failed to cancel the request."},
	OpRemoveFriend:   {"친구 삭제에 실패했습니다.", "Failed to remove the friend."},
}

var successMessages = map[Op]message{
	OpSignUp:      {"회원가입 완료! 로그인 해주세요.", "Signed up! Please sign in."},
	OpSendRequest: {"친구 요청을 보냈어요.", "Friend request sent."},
}

var unknownOp = message{"요청 처리에 실패했습니다.", "The request failed."}

var matcher = language.NewMatcher([]language.Tag{language.Korean, language.English})

// Language picks Korean or English from Accept-Language; Korean wins when
// nothing matches.
func Language(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Korean
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx != 1 {
		return language.Korean
	}
	return language.English
}

// Message returns the user-facing text for err raised by op.
func Message(op Op, err error, tag language.Tag) string {
	for _, s := range specific {
		if errors.Is(err, s.err) {
			return s.msg.in(tag)
		}
	}
	if m, ok := opMessages[op]; ok {
		return m.in(tag)
	}
	return unknownOp.in(tag)
}

// Success returns the confirmation text shown after op succeeds, or "" when
// op has none.
func Success(op Op, tag language.Tag) string {
	if m, ok := successMessages[op]; ok {
		return m.in(tag)
	}
	return ""
}

// SuccessMessage is Success negotiated from the request's Accept-Language.
func SuccessMessage(c *gin.Context, op Op) string {
	return Success(op, Language(c.GetHeader("Accept-Language")))
}

// Error writes the error envelope for err and aborts the chain.
func Error(c *gin.Context, op Op, err error) {
	tag := Language(c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{
		"ok":    false,
		"error": Message(op, err, tag),
		"code":  apperr.Kind(err),
	})
}

// BadRequest reports a malformed request body.
func BadRequest(c *gin.Context, op Op) {
	Error(c, op, apperr.ErrInvalidArgument)
}

// OK writes a success envelope.
func OK(c *gin.Context, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["ok"] = true
	c.JSON(http.StatusOK, body)
}
