package validation

import "testing"

func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "file.txt", true},
		{"with_dash", "my-file.txt", true},
		{"with_dots", "file.v1.2.3.txt", true},
		{"double_dot_inside", "data..v2.csv", true},
		{"hidden", ".bashrc", true},
		{"unicode", "résumé.pdf", true},
		{"spaces", "my file.txt", true},

		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"forward_slash", "dir/file.txt", false},
		{"backslash", `dir\file.txt`, false},
		{"traversal", "../etc/passwd", false},
		{"null_byte", "file\x00.txt", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("ValidateFilename(%q) unexpected error: %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("ValidateFilename(%q) expected error, got nil", tc.filename)
			}
		})
	}
}

func TestValidateBucketName(t *testing.T) {
	testCases := []struct {
		name        string
		bucket      string
		expectValid bool
	}{
		{"simple", "media", true},
		{"dashes_and_dots", "my-bucket.backup", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"slash", "media/img", false},
		{"backslash", `media\img`, false},
		{"inner_space", "my bucket", false},
		{"null_byte", "media\x00", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBucketName(tc.bucket)
			if tc.expectValid && err != nil {
				t.Errorf("ValidateBucketName(%q) unexpected error: %v", tc.bucket, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("ValidateBucketName(%q) expected error, got nil", tc.bucket)
			}
		})
	}
}
