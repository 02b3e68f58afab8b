package fuzztests

import "testing"

const maxFuzzInput = 64 << 10 // 64 KiB

// pythonSeeds cover the syntactic territory error recovery has to
// survive: clean code, truncated constructs, bad indentation, import
// forms, narrowing guards.
var pythonSeeds = []string{
	"",
	"x = 1\n",
	"def f(a: int, b: str = \"s\") -> bool:\n    return True\n",
	"class Dog(Animal):\n    def speak(self) -> str:\n        return \"woof\"\n",
	"from a import *\nfrom b import name as alias\nimport os.path\n",
	"if isinstance(x, int):\n    y = x\nelse:\n    y = \"a\"\n",
	"try:\n    f()\nexcept ValueError as e:\n    raise\nfinally:\n    pass\n",
	"while True:\n    break\nfor i, v in pairs:\n    continue\n",
	"x: list[int] = [1, 2]\nd = {\"k\": 1}\nt = (1, \"a\", None)\n",
	"lam = lambda a, b: a + b\nz = lam(1, 2)\n",
	"global g\nnonlocal n\n",
	"def f(:\n",
	"class :\n",
	"if x\n    y = 1\n",
	"def f():\n  x = 1\n      y = 2\n\tz = 3\n",
	"x = \"unterminated\ny = 'also\n",
	"x = 0b102 + 0xZZ + 1.2.3\n",
	"from . import sibling\nfrom ..pkg import deep\n",
	"x = ((((((((1))))))))\n",
	"assert isinstance(v, str), \"message\"\nreturn\n",
	"@decorator\n@mod.attr(arg)\ndef f():\n    pass\n",
	"x += y\nx //= 2\nx **= 3\n",
	"\x00\xff\xfe invalid bytes \x80\n",
	"def f():\n    return [x for x in xs]\n",
}

func addCorpusSeeds(f *testing.F) {
	for _, seed := range pythonSeeds {
		f.Add([]byte(seed))
	}
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		return append([]byte(nil), input[:maxFuzzInput]...)
	}
	return append([]byte(nil), input...)
}
