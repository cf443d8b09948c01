package verification

import (
	"context"
	"testing"
	"time"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws/awstest"
)

func TestDeleteForUser_FollowsPages(t *testing.T) {
	fake := awstest.NewDynamoDB(map[string]string{"tokens": "token"})
	fake.PageSize = 2
	s := NewStore(fake, "tokens", "user_id-index")
	ctx := context.Background()
	exp := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	seed := []Token{
		{Token: "t1", UserID: "u1", Purpose: PurposeVerifyEmail},
		{Token: "t2", UserID: "u1", Purpose: PurposePasswordReset},
		{Token: "t3", UserID: "u1", Purpose: PurposeVerifyEmail},
		{Token: "t4", UserID: "u2", Purpose: PurposeVerifyEmail},
		{Token: "t5", UserID: "u1", Purpose: PurposeVerifyEmail},
		{Token: "t6", UserID: "u1", Purpose: PurposeVerifyEmail},
	}
	for i := range seed {
		seed[i].ExpiresAt = exp
		if err := s.Put(ctx, &seed[i]); err != nil {
			t.Fatalf("put %s: %v", seed[i].Token, err)
		}
	}

	if err := s.DeleteForUser(ctx, "u1", PurposeVerifyEmail); err != nil {
		t.Fatalf("delete for user: %v", err)
	}
	if fake.Calls["Query"] < 3 {
		t.Fatalf("expected paged queries, got %d", fake.Calls["Query"])
	}

	for _, tc := range []struct {
		token string
		kept  bool
	}{
		{"t1", false},
		{"t2", true},
		{"t3", false},
		{"t4", true},
		{"t5", false},
		{"t6", false},
	} {
		got, err := s.Get(ctx, tc.token)
		if err != nil {
			t.Fatalf("get %s: %v", tc.token, err)
		}
		if (got != nil) != tc.kept {
			t.Fatalf("token %s kept=%v, want %v", tc.token, got != nil, tc.kept)
		}
	}
}
