package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestChatRole_IsValid(t *testing.T) {
	tests := []struct {
		name string
		role types.ChatRole
		want bool
	}{
		{name: "user", role: types.ChatRoleUser, want: true},
		{name: "model", role: types.ChatRoleModel, want: true},
		{name: "assistant is not a stored role", role: types.ChatRole("assistant"), want: false},
		{name: "empty", role: types.ChatRole(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.role.IsValid()).Equal(tt.want)
		})
	}
}

func TestParseChatRole(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.ChatRole
		wantErr bool
	}{
		{name: "user", input: "user", want: types.ChatRoleUser},
		{name: "model", input: "model", want: types.ChatRoleModel},
		{name: "assistant alias", input: "assistant", want: types.ChatRoleModel},
		{name: "system is rejected", input: "system", wantErr: true},
		{name: "empty is rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseChatRole(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestHistoryPromptRole(t *testing.T) {
	gt.Value(t, types.HistoryPromptRole(types.ChatRoleUser)).Equal(types.PromptRoleHistoryUser)
	gt.Value(t, types.HistoryPromptRole(types.ChatRoleModel)).Equal(types.PromptRoleHistoryModel)
}

func TestTierOrder(t *testing.T) {
	gt.Array(t, types.AllTiers()).Length(4)
	gt.Value(t, types.ContextTiers()).Equal([]types.Tier{
		types.TierGeneral,
		types.TierHistorical,
		types.TierCognitive,
	})

	for _, tier := range types.AllTiers() {
		gt.Bool(t, tier.IsValid()).True()
		gt.String(t, tier.Heading()).NotEqual(string(tier))
	}
	gt.Bool(t, types.Tier("archive").IsValid()).False()
}
