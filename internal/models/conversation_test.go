package models

import "testing"

func TestConversationOtherUserID(t *testing.T) {
	conv := Conversation{User1ID: 3, User2ID: 9}

	if got := conv.OtherUserID(3); got != 9 {
		t.Errorf("OtherUserID(3) = %d, want 9", got)
	}
	if got := conv.OtherUserID(9); got != 3 {
		t.Errorf("OtherUserID(9) = %d, want 3", got)
	}
}

func TestConversationUnreadFor(t *testing.T) {
	conv := Conversation{User1ID: 3, User2ID: 9, UnreadCountUser1: 2, UnreadCountUser2: 5}

	if got := conv.UnreadFor(3); got != 2 {
		t.Errorf("UnreadFor(3) = %d, want 2", got)
	}
	if got := conv.UnreadFor(9); got != 5 {
		t.Errorf("UnreadFor(9) = %d, want 5", got)
	}
}

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Nickname: "seller42"}, false},
		{"empty nickname", User{}, true},
		{"too short", User{Nickname: "a"}, true},
		{"too long", User{Nickname: string(make([]byte, 51))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
