package scanning

import (
	"strings"
)

// systemPrompt frames the model as a receipt analyst
const systemPrompt = `Eres un asistente financiero que analiza imágenes de boletas y facturas chilenas. Lee con cuidado todo el texto del documento y devuelve únicamente JSON con la estructura solicitada.`

// extractionPrompt is the shared prompt used by all LLM providers
const extractionPrompt = `Extrae todos los campos posibles de la boleta o factura. Considera la moneda CLP cuando no se indique.

Return ONLY valid JSON in this exact format:
{
  "title": "Store Name - Brief Description",
  "merchantName": "Store Name",
  "summary": "One sentence describing the purchase",
  "purchaseDate": "YYYY-MM-DD",
  "totalAmount": 0.00,
  "currencyCode": "CLP",
  "taxAmount": 0.00,
  "taxRate": 0.19,
  "category": "one of: housing, utilities, groceries, dining, health, transportation, entertainment, education, insurance, debt, savings, travel, other",
  "keywords": ["keyword"],
  "tags": ["tag"],
  "metadata": {"key": "value"},
  "locationDescription": "Address or place name",
  "location": {"latitude": 0.0, "longitude": 0.0}
}

Important:
- The title should start with the actual store/business name from the receipt
- The purchaseDate must be in YYYY-MM-DD format
- Amounts must be numbers (not strings)
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// userPrompt appends the user's own description as context when present
func userPrompt(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return extractionPrompt
	}
	return extractionPrompt + "\n\nContexto del usuario: " + hint
}
