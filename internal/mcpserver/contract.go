package mcpserver

// DocumentFormatContract describes the JSON document produced by export_form
// and accepted by import_form.
const DocumentFormatContract = `# Preference Center Export Document

An exported form is a single UTF-8 JSON object.

## Structure

` + "```" + `json
{
  "formItems": [
    {
      "id": "heading-1710000000000",
      "kind": "heading",
      "label": "Heading",
      "type": "text",
      "required": true,
      "defaultValue": ""
    },
    {
      "id": "preference-email-1710000000001",
      "kind": "preference-email",
      "label": "Email Notifications",
      "type": "preference",
      "required": false,
      "defaultValue": false,
      "preferenceType": "email"
    }
  ],
  "preferences": {"email": true, "sms": false, "pushNotifications": false},
  "exportDate": "2024-03-09T14:30:00.000Z"
}
` + "```" + `

## Rules

1. **` + "`" + `formItems` + "`" + ` is required** and must be an array. The order is the
   canvas order.
2. **Every item needs a unique ` + "`" + `id` + "`" + `.** Ids are opaque; do not derive
   meaning from them.
3. **` + "`" + `type` + "`" + `** is one of color, text, select, file, or preference.
   Preference items also carry ` + "`" + `preferenceType` + "`" + ` (email, sms, push).
4. **` + "`" + `preferences` + "`" + ` is optional.** A document without it gets the default
   flags (email on, sms and pushNotifications off).
5. **Values are not part of the document.** Every item starts blank after an
   import; set values afterwards with ` + "`" + `set_value` + "`" + `.
6. **Styles are not part of the document** and survive an import unchanged.
7. **` + "`" + `exportDate` + "`" + `** is informational and ignored on import.
8. Imports are rejected in preview mode and when the document exceeds 1 MiB.

## Logo

Upload the logo image with ` + "`" + `upload_logo` + "`" + `, passing the id of a file item.
The stored file name becomes the item's value and the file is served at
` + "`" + `/assets/<session>/<filename>` + "`" + `.
`
