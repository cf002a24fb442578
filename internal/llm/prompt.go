package llm

import "strings"

// maxPromptChars bounds the document text embedded in the prompt so a
// pathological upload cannot blow up the model's context window.
const maxPromptChars = 16000

// BuildPrompt composes the extraction instruction. The model is told to
// copy exact spans, emit null for anything absent, and answer with nothing
// but the schema-shaped JSON.
func BuildPrompt(req ExtractRequest) string {
	text := req.Text
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	var b strings.Builder
	b.WriteString("You are an expert data extractor.\n\n")
	b.WriteString("### INSTRUCTION\n")
	b.WriteString("Analyze the \"DOCUMENT TEXT\" below and extract the required information into a JSON object.\n")
	b.WriteString("- Use EXACT values found in the text.\n")
	b.WriteString("- If a value is not found, use null.\n")
	b.WriteString("- Keep dates exactly as written in the document.\n")
	b.WriteString("- Output ONLY valid JSON.\n\n")
	b.WriteString("### REQUIRED JSON STRUCTURE\n")
	b.WriteString(`{
  "dadesAlumne": {
    "nomCognoms": "Name Surnames",
    "dataNaixement": "DD/MM/YYYY",
    "curs": "Course Name"
  },
  "motiu": {
    "diagnostic": "Diagnosis or Reason"
  },
  "adaptacionsGenerals": ["Adaptation 1", "Adaptation 2"],
  "orientacions": ["Orientation 1", "Orientation 2"]
}`)
	b.WriteString("\n\n### EXAMPLE (For Reference Only - DO NOT COPY)\n")
	b.WriteString("Input Text: \"L'alumne Pau Vila nascut el 01/01/2010 fa 1r d'ESO...\"\n")
	b.WriteString(`Output JSON: {"dadesAlumne": {"nomCognoms": "Pau Vila", ...}}`)
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("\n\n### SOURCE FILENAME\n")
		b.WriteString(f)
	}
	b.WriteString("\n\n### DOCUMENT TEXT (Analyze this):\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n\n### YOUR JSON OUTPUT:\n")
	return b.String()
}
