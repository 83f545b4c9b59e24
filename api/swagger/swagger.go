package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Trip Control API",
        "description": "Transdata x Globus trip reconciliation and schedule control",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Access tokens"},
        {"name": "Comparacoes", "description": "Transdata x Globus reconciliation"},
        {"name": "Controle de Horarios", "description": "Schedule overlay edits and their history"},
        {"name": "Viagens", "description": "Trip snapshots from both sources"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Issue an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Claims of the current token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/comparacoes": {
            "get": {
                "tags": ["Comparacoes"],
                "summary": "List comparison rows of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true},
                    {"name": "status", "in": "query", "type": "string", "enum": ["compativel", "divergente", "horario_divergente", "apenas_transdata", "apenas_globus"]},
                    {"name": "linha", "in": "query", "type": "string"},
                    {"name": "setor", "in": "query", "type": "string"},
                    {"name": "servicoCompativel", "in": "query", "type": "boolean"},
                    {"name": "sentidoCompativel", "in": "query", "type": "boolean"},
                    {"name": "horarioCompativel", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/comparacoes/executar": {
            "post": {
                "tags": ["Comparacoes"],
                "summary": "Run reconciliation for a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A run of the same date is in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/comparacoes/estatisticas": {
            "get": {
                "tags": ["Comparacoes"],
                "summary": "Latest run summary of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No run for the date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/comparacoes/historico": {
            "get": {
                "tags": ["Comparacoes"],
                "summary": "Run history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "dataInicio", "in": "query", "type": "string"},
                    {"name": "dataFim", "in": "query", "type": "string"},
                    {"name": "executadoPor", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/comparacoes/exportar": {
            "get": {
                "tags": ["Comparacoes"],
                "summary": "Download the comparison rows of a date",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true},
                    {"name": "formato", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "linha", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/controle-horarios": {
            "get": {
                "tags": ["Controle de Horarios"],
                "summary": "Globus trips of a date merged with their edits",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true},
                    {"name": "linha", "in": "query", "type": "string"},
                    {"name": "servico", "in": "query", "type": "string"},
                    {"name": "setor", "in": "query", "type": "string"},
                    {"name": "editado", "in": "query", "type": "boolean"},
                    {"name": "busca", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/controle-horarios/{id}": {
            "patch": {
                "tags": ["Controle de Horarios"],
                "summary": "Edit one field of a trip, propagating forward when eligible",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveEditRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid field or value", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Trip not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/controle-horarios/{id}/historico": {
            "get": {
                "tags": ["Controle de Horarios"],
                "summary": "Edit history of a trip",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/controle-horarios/lote": {
            "post": {
                "tags": ["Controle de Horarios"],
                "summary": "Save several trips without propagation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchEditRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/viagens/transdata": {
            "put": {
                "tags": ["Viagens"],
                "summary": "Replace the Transdata trips of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportTripsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/viagens/globus": {
            "put": {
                "tags": ["Viagens"],
                "summary": "Replace the Globus trips of a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "data", "in": "query", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportTripsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/viagens/{fonte}/sincronizar": {
            "post": {
                "tags": ["Viagens"],
                "summary": "Queue a pull from an upstream API",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "fonte", "in": "path", "type": "string", "required": true, "enum": ["transdata", "globus"]},
                    {"name": "data", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Source not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/viagens/sincronizacoes/{id}": {
            "get": {
                "tags": ["Viagens"],
                "summary": "State of a pull job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SaveEditRequest": {
            "type": "object",
            "required": ["campo"],
            "properties": {
                "campo": {"type": "string"},
                "valor": {},
                "observacao": {"type": "string"},
                "propagar": {"type": "boolean"}
            }
        },
        "BatchEditItem": {
            "type": "object",
            "properties": {
                "viagemId": {"type": "string"},
                "alteracoes": {"type": "object"},
                "observacao": {"type": "string"}
            }
        },
        "BatchEditRequest": {
            "type": "object",
            "required": ["data", "itens"],
            "properties": {
                "data": {"type": "string"},
                "itens": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BatchEditItem"}
                }
            }
        },
        "TripInput": {
            "type": "object",
            "required": ["idOrigem", "codigoLinha"],
            "properties": {
                "idOrigem": {"type": "string"},
                "codigoLinha": {"type": "string"},
                "nomeLinha": {"type": "string"},
                "servico": {"type": "string"},
                "sentido": {"type": "string"},
                "setor": {"type": "string"},
                "inicioPrevisto": {"type": "string"},
                "inicioRealizado": {"type": "string"},
                "fimPrevisto": {"type": "string"},
                "nomeMotorista": {"type": "string"},
                "crachaMotorista": {"type": "string"},
                "prefixoVeiculo": {"type": "string"}
            }
        },
        "ImportTripsRequest": {
            "type": "object",
            "properties": {
                "viagens": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TripInput"}
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "object"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
