// Package natives is the reference native-function standard library
// exposed to Canidae scripts. It is wired in by the driver, never by the
// compiler or VM themselves, so the embedding contract stays exactly what
// spec.md describes: a name, an arity, and a Go function.
package natives

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"

	"canidae/pkg/value"
)

// Registrar is the subset of *vm.VM natives needs; defined here (rather
// than importing pkg/vm) so pkg/vm and pkg/natives never form an import
// cycle — vm_import.go already depends on pkg/compiler, and natives is
// wired in one layer up, by the driver.
type Registrar interface {
	SetGlobal(name string, v value.Value)
}

// Install registers every native-function global. Call once per VM before
// Run, after the script's own globals have had no chance to collide yet.
func Install(vm Registrar) {
	native(vm, "hashPassword", 1, hashPassword)
	native(vm, "verifyPassword", 2, verifyPassword)
	native(vm, "jwtSign", 2, jwtSign)
	native(vm, "jwtVerify", 2, jwtVerify)
	native(vm, "sendMail", 3, sendMail)
	native(vm, "wsPing", 1, wsPing)
	native(vm, "configGet", 1, configGet)
	native(vm, "uuid4", 0, uuid4)
	native(vm, "humanizeBytes", 1, humanizeBytes)
	native(vm, "clock", 0, clock)
}

func native(vm Registrar, name string, arity int, fn func(args []value.Value) (value.Value, error)) {
	vm.SetGlobal(name, &value.NativeFn{Name: name, Arity: arity, Fn: fn})
}

func argString(args []value.Value, i int) (string, error) {
	s, ok := args[i].(value.String)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i+1)
	}
	return string(s), nil
}

func hashPassword(args []value.Value) (value.Value, error) {
	plain, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return value.String(hash), nil
}

func verifyPassword(args []value.Value) (value.Value, error) {
	hash, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	plain, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return value.Bool(err == nil), nil
}

func jwtSign(args []value.Value) (value.Value, error) {
	subject, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	secret, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, err
	}
	return value.String(signed), nil
}

func jwtVerify(args []value.Value) (value.Value, error) {
	tokenStr, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	secret, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return value.Bool(false), nil
	}
	return value.Bool(true), nil
}

func sendMail(args []value.Value) (value.Value, error) {
	to, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	subject, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	body, err := argString(args, 2)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	d := gomail.NewDialer("localhost", 25, "", "")
	if err := d.DialAndSend(m); err != nil {
		return nil, err
	}
	return value.Bool(true), nil
}

func wsPing(args []value.Value) (value.Value, error) {
	url, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second, TLSClientConfig: &tls.Config{}}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return value.Bool(false), nil
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return value.Bool(false), nil
	}
	return value.Bool(true), nil
}

func configGet(args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	return value.String(os.Getenv(name)), nil
}

func uuid4(args []value.Value) (value.Value, error) {
	return value.String(uuid.NewString()), nil
}

func humanizeBytes(args []value.Value) (value.Value, error) {
	n, ok := args[0].(value.Number)
	if !ok {
		return nil, fmt.Errorf("argument 1 must be a number")
	}
	return value.String(humanize.Bytes(uint64(n))), nil
}

func clock(args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixMilli())), nil
}
