package cfb

type Validation int

const (
	ValidationPermissive Validation = iota
	ValidationStrict     Validation = iota
)

func (v Validation) IsStrict() bool {
	return v == ValidationStrict
}

func (v Validation) String() string {
	if v.IsStrict() {
		return "strict"
	}
	return "permissive"
}
