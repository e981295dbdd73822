// Package code 定义 API 层统一的业务状态码
package code

import (
	"fmt"
	"net/http"
)

// Code 业务状态码
type Code struct {
	// 状态码
	code int
	// 状态
	status bool
	// 错误消息
	msg string
	// 数据
	data interface{}
	// 是否含有Data
	haveData bool
	// 错误详细信息
	details []string
	// 是否含有详情
	haveDetails bool
}

var codes = map[int]string{}

// NewError 注册一个失败状态码，重复注册会 panic
func NewError(code int, msg string) *Code {
	if _, ok := codes[code]; ok {
		panic(fmt.Sprintf("code %d already exists, pick another one", code))
	}
	codes[code] = msg
	return &Code{code: code, status: false, msg: msg}
}

// NewSuss 注册一个成功状态码
func NewSuss(code int, msg string) *Code {
	if _, ok := codes[code]; ok {
		panic(fmt.Sprintf("code %d already exists, pick another one", code))
	}
	codes[code] = msg
	return &Code{code: code, status: true, msg: msg}
}

// Clone 创建一个新的 Code 副本
func (e *Code) Clone() *Code {
	// 创建一个新的副本,而不是修改原对象
	return &Code{
		code:   e.code,
		status: e.status,
		msg:    e.msg,
	}
}

func (e *Code) Error() string {
	return e.msg
}

func (e *Code) Code() int {
	return e.code
}

func (e *Code) Status() bool {
	return e.status
}

func (e *Code) Msg() string {
	return e.msg
}

func (e *Code) Details() []string {
	return e.details
}

func (e *Code) Data() interface{} {
	return e.data
}

func (e *Code) HaveData() bool {
	return e.haveData
}

func (e *Code) HaveDetails() bool {
	return e.haveDetails
}

// WithData 返回携带数据的副本
func (e *Code) WithData(data interface{}) *Code {
	c := e.Clone()
	c.data = data
	c.haveData = true
	return c
}

// WithDetails 返回携带错误详情的副本
func (e *Code) WithDetails(details ...string) *Code {
	c := e.Clone()
	c.details = append(c.details, details...)
	c.haveDetails = true
	return c
}

// WithMessage 返回替换了消息文本的副本
func (e *Code) WithMessage(msg string) *Code {
	c := e.Clone()
	c.msg = msg
	return c
}

func (e *Code) StatusCode() int {
	return http.StatusOK
}
