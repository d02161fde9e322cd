package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// recordingAPI answers every GetParameter with a fixed value or error and
// keeps the inputs it was given.
type recordingAPI struct {
	out    *ssm.GetParameterOutput
	err    error
	inputs []*ssm.GetParameterInput
}

func (r *recordingAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	r.inputs = append(r.inputs, in)
	return r.out, r.err
}

func valueOf(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: aws.String("/handbook/gemini-key"), Value: aws.String(v), Type: types.ParameterTypeSecureString,
	}}
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

func TestGetParameter(t *testing.T) {
	cases := []struct {
		name     string
		api      *recordingAPI
		param    string
		want     string
		wantErr  string
		wantSent string
	}{
		{name: "secure string", api: &recordingAPI{out: valueOf("AIza-test")}, param: "/handbook/gemini-key", want: "AIza-test", wantSent: "/handbook/gemini-key"},
		{name: "name trimmed", api: &recordingAPI{out: valueOf("v")}, param: " /handbook/gemini-key ", want: "v", wantSent: "/handbook/gemini-key"},
		{name: "api error", api: &recordingAPI{err: errors.New("boom")}, param: "p", wantErr: "boom", wantSent: "p"},
		{name: "nil output", api: &recordingAPI{}, param: "p", wantErr: "missing value", wantSent: "p"},
		{name: "nil value", api: &recordingAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p")}}}, param: "p", wantErr: "missing value", wantSent: "p"},
		{name: "empty name", api: &recordingAPI{}, param: "  ", wantErr: "required"},
		{name: "not initialized", param: "p", wantErr: "not initialized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &Client{}
			if tc.api != nil {
				var err error
				client, err = New(tc.api)
				require.NoError(t, err)
			}

			got, err := client.GetParameter(context.Background(), tc.param)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			}

			if tc.api == nil {
				return
			}
			if tc.wantSent == "" {
				require.Empty(t, tc.api.inputs)
				return
			}
			require.Len(t, tc.api.inputs, 1)
			require.Equal(t, tc.wantSent, aws.ToString(tc.api.inputs[0].Name))
			require.True(t, aws.ToBool(tc.api.inputs[0].WithDecryption))
		})
	}
}

func TestResolveSecret(t *testing.T) {
	cases := []struct {
		name    string
		api     *recordingAPI
		want    string
		wantErr string
	}{
		{name: "raw value", api: &recordingAPI{out: valueOf("  AIza-raw \n")}, want: "AIza-raw"},
		{name: "json token", api: &recordingAPI{out: valueOf(`{"token":"AIza-json"}`)}, want: "AIza-json"},
		{name: "json token padded", api: &recordingAPI{out: valueOf(` {"token":" AIza-json "} `)}, want: "AIza-json"},
		{name: "json empty token", api: &recordingAPI{out: valueOf(`{"token":""}`)}, wantErr: "secret is empty"},
		{name: "bad json", api: &recordingAPI{out: valueOf(`{"token":`)}, wantErr: "unmarshal"},
		{name: "blank", api: &recordingAPI{out: valueOf("   ")}, wantErr: "secret is empty"},
		{name: "access denied", api: &recordingAPI{err: errors.New("access denied")}, wantErr: "access denied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(tc.api)
			require.NoError(t, err)

			got, err := ResolveSecret(context.Background(), client, "/handbook/gemini-key")
			require.Len(t, tc.api.inputs, 1)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestResolveSecret_NilGetter(t *testing.T) {
	_, err := ResolveSecret(context.Background(), nil, "p")
	require.ErrorContains(t, err, "must not be nil")
}
