package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://localhost/boom", "/connect", "http://localhost/boom/connect"},
		{"http://localhost/boom/", "chat/connect", "http://localhost/boom/chat/connect"},
		{"http://localhost/boom//", "/chat/message", "http://localhost/boom/chat/message"},
		{"http://localhost/boom", "", "http://localhost/boom"},
		{"", "/connect", "/connect"},
		{"http://localhost/boom", "https://other.host/x", "https://other.host/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), tt.base+" + "+tt.path)
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("http://a"))
	assert.True(t, IsAbsoluteURL("//a"))
	assert.False(t, IsAbsoluteURL("/a"))
	assert.False(t, IsAbsoluteURL("a/b"))
}
