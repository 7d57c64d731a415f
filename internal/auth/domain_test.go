package auth

import "testing"

func TestValidMatricule(t *testing.T) {
	cases := []struct {
		matricule string
		want      bool
	}{
		{"AF-1234P", true},
		{"XX-9999X", true},
		{"af-1234p", false},
		{"AF1234P", false},
		{"AF-123P", false},
		{"AF-12345P", false},
		{"A-1234P", false},
		{"AF-1234", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidMatricule(tc.matricule); got != tc.want {
			t.Errorf("ValidMatricule(%q) = %v, want %v", tc.matricule, got, tc.want)
		}
	}
}

func TestCreateUserInputValidate(t *testing.T) {
	valid := CreateUserInput{
		Matricule:      "AF-1234P",
		FullName:       "Test Operator",
		Email:          "operator@example.com",
		Password:       "longenough",
		Role:           RoleField,
		ClearanceLevel: ClearanceConfidential,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error on valid input: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateUserInput)
	}{
		{"bad matricule", func(in *CreateUserInput) { in.Matricule = "nope" }},
		{"empty name", func(in *CreateUserInput) { in.FullName = "  " }},
		{"bad email", func(in *CreateUserInput) { in.Email = "not-an-email" }},
		{"short password", func(in *CreateUserInput) { in.Password = "short" }},
		{"unknown role", func(in *CreateUserInput) { in.Role = "super" }},
		{"unknown clearance", func(in *CreateUserInput) { in.ClearanceLevel = "cosmic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			if err := in.Validate(); err == nil {
				t.Error("Validate() accepted invalid input")
			}
		})
	}
}
