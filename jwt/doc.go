// Package jwt issues and verifies the signed bearer tokens handed out on login. Tokens carry
// a subject, a principal-kind tag, issued-at and expiry; verification additionally binds the
// token to an expected subject.
package jwt
